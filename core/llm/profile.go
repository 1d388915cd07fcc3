package llm

import "github.com/siherrmann/handbot/core/prompt"

// Backend names as used in the configuration
const (
	BackendOpenAI = "openai"
	BackendLocal  = "local"
	BackendGemini = "gemini"
	BackendClaude = "claude"
)

// Profile holds the texts and categories the chatbot uses for a backend
type Profile struct {
	// Label prefixes the log categories, e.g. "OpenAI - General"
	Label       string
	Template    prompt.Template
	Referral    string
	Apology     string
	Unavailable string
}

const (
	hostedReferral    = "Lo siento, no tengo suficiente información para responder a esa pregunta. Si necesitas más ayuda, puedo agendar una llamada con un representante."
	hostedApology     = "Lo siento, no pude obtener una respuesta en este momento. Por favor, intenta de nuevo o agenda una llamada con un representante."
	localReferral     = "Lo siento, no tengo suficiente información para responder a esa pregunta basada en el manual. Si necesitas más ayuda, puedo agendar una llamada con un representante de Recursos Humanos."
	localApology      = "Disculpa, no pude obtener una respuesta en este momento con el modelo local. Por favor, intenta de nuevo o agenda una llamada con un representante."
	unavailableAnswer = "Lo siento, el modelo de lenguaje para generar respuestas no está disponible en este momento. Por favor, contacte a soporte."
)

var profiles = map[string]Profile{
	BackendOpenAI: {Label: "OpenAI", Template: prompt.BankOpenAI, Referral: hostedReferral, Apology: hostedApology, Unavailable: unavailableAnswer},
	BackendLocal:  {Label: "LLM Local", Template: prompt.BankLocal, Referral: localReferral, Apology: localApology, Unavailable: unavailableAnswer},
	BackendGemini: {Label: "Gemini", Template: prompt.BankOpenAI, Referral: hostedReferral, Apology: hostedApology, Unavailable: unavailableAnswer},
	BackendClaude: {Label: "Claude", Template: prompt.BankOpenAI, Referral: hostedReferral, Apology: hostedApology, Unavailable: unavailableAnswer},
}

// ProfileFor returns the profile of a backend, unknown backends get the OpenAI profile
func ProfileFor(backend string) Profile {
	if p, ok := profiles[backend]; ok {
		return p
	}
	return profiles[BackendOpenAI]
}

// Category returns "<Label> - <kind>"
func (p Profile) Category(kind string) string {
	return p.Label + " - " + kind
}
