package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Categories of the router replies
const (
	CategoryWelcomeIdentity     = "Welcome/Identity Prompt"
	CategoryVerificationPrompt  = "Identity Verification Prompt"
	CategoryVerificationSuccess = "Identity Verification Success"
	CategoryVerificationFailed  = "Identity Verification Failed"
	CategoryWelcome             = "Welcome"
	CategoryWorkLetter          = "Work Letter"
	CategoryVacationPay         = "Vacation - Pay"
	CategoryVacation            = "Vacation"
	CategoryLoan                = "Loan"
	CategoryBonus               = "Bonus"
)

const (
	identityPromptText      = "Hola, soy tu asistente virtual, %s. Para poder asistirte, primero necesito verificar tu identidad. Por favor, comparte tu número de identificación y tu código de empleado."
	verificationPromptText  = "Para poder ayudarle, por favor, comparta su número de identificación completo y su código de empleado. Por ejemplo: 'Mi número de identificación es XXXXXXXXXX y mi código de empleado es 12345'."
	verificationSuccessText = "¡Bienvenido! Su identidad ha sido verificada. ¿En qué puedo asistirte hoy?"
	verificationFailedText  = "Lo siento, no pude verificar su identidad. Por favor, asegúrese de que su número de identificación y su código de empleado sean correctos y vuelva a intentarlo."
	welcomeText             = "Hola, soy tu asistente virtual, %s. ¿En qué puedo ayudarte hoy?"
	workLetterText          = "Para solicitar tu carta de trabajo, puedes hacerlo directamente desde el portal de empleados (enlace al portal) siguiendo estos pasos: 1. Inicia sesión con tu usuario y contraseña. 2. Selecciona la opción 'Solicitudes Internas'. 3. Elige 'Carta de Trabajo' y completa la información solicitada."
	vacationPayText         = "El pago de vacaciones se procesa anualmente basado en tu fecha de contratación. Puedes verificar tus pagos en el portal de empleados > Mis Pagos. Si no aparece, por favor, responde con 'RECLAMO PAGO DE VACACIONES'."
	vacationText            = "Tienes derecho a vacaciones%s. Tienes 14 días para disfrutar cada año. Después de 5 años, aumenta a 18 días pagados + 14 días de disfrute. Para solicitar tus vacaciones, puedes hacerlo directamente desde el portal de empleados (enlace al portal) seleccionando 'Solicitud de Vacaciones'."
	loanText                = "Para solicitar un préstamo personal, debes ser empleado permanente y tener al menos 6 meses en la institución. Puedes iniciar la solicitud en el portal de empleados > 'Solicitudes Financieras'."
	bonusText               = "El bono de rendimiento se calcula anualmente en base a los objetivos del banco y tu desempeño individual. Se distribuye en el segundo trimestre de cada año fiscal."
)

// answerFunc builds the reply of a rule, employeeID is the verified sender
type answerFunc func(ctx context.Context, r *Router, employeeID string) string

// Rule is a keyword intent. It matches when every group has at least one hit.
type Rule struct {
	Category string
	Groups   []*regexp.Regexp
	answer   answerFunc
}

// Matches reports whether the lowercased message triggers the rule
func (r Rule) Matches(lower string) bool {
	for _, group := range r.Groups {
		if !group.MatchString(lower) {
			return false
		}
	}
	return true
}

// anyOf matches any of the keywords as a substring
func anyOf(keywords ...string) *regexp.Regexp {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(strings.Join(quoted, "|"))
}

// anyWord matches any of the keywords as a whole word
func anyWord(keywords ...string) *regexp.Regexp {
	quoted := make([]string, len(keywords))
	for i, k := range keywords {
		quoted[i] = regexp.QuoteMeta(k)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func fixed(text string) answerFunc {
	return func(context.Context, *Router, string) string { return text }
}

// DefaultRules are checked in order, the first match wins
var DefaultRules = []Rule{
	{
		Category: CategoryWelcome,
		Groups:   []*regexp.Regexp{anyWord("hello", "hi")},
		answer: func(_ context.Context, r *Router, _ string) string {
			return fmt.Sprintf(welcomeText, r.botName)
		},
	},
	{
		Category: CategoryWorkLetter,
		Groups:   []*regexp.Regexp{anyOf("work letter", "carta de trabajo")},
		answer:   fixed(workLetterText),
	},
	{
		Category: CategoryVacationPay,
		Groups:   []*regexp.Regexp{anyOf("vacation", "vacaciones"), anyOf("pay", "pago de vacaciones")},
		answer:   fixed(vacationPayText),
	},
	{
		Category: CategoryVacation,
		Groups:   []*regexp.Regexp{anyOf("vacation", "vacaciones")},
		answer: func(ctx context.Context, r *Router, employeeID string) string {
			return fmt.Sprintf(vacationText, r.hireDateSuffix(ctx, employeeID))
		},
	},
	{
		Category: CategoryLoan,
		Groups:   []*regexp.Regexp{anyOf("loan", "prestamo", "préstamo")},
		answer:   fixed(loanText),
	},
	{
		Category: CategoryBonus,
		Groups:   []*regexp.Regexp{anyOf("bono", "bonus")},
		answer:   fixed(bonusText),
	},
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FormatSpanishDate formats a date as "02 de enero de 2006"
func FormatSpanishDate(t time.Time) string {
	return fmt.Sprintf("%02d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}
