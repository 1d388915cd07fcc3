package prompt

// Template is a prompt with placeholders.
// Supported placeholders are {context}, {question}, {company}, {history}, {idea}
// and {description}.
type Template struct {
	Name   string
	System string
	User   string
}

// BankOpenAI is the single user message sent to hosted backends by the bank chatbot
var BankOpenAI = Template{
	Name: "bank-openai",
	User: "Basado en la siguiente información del manual de empleados de {company}:\n\n{context}\n\nPregunta: {question}\n\nRespuesta:",
}

// BankLocal is the system and user message pair sent to the local backend
var BankLocal = Template{
	Name:   "bank-local",
	System: "Eres un asistente virtual útil para los empleados de {company}, respondiendo preguntas estrictamente basadas en la información proporcionada del manual. Si la información no está en el manual, sugiere agendar una llamada.",
	User:   "Basado en la siguiente información del manual:\n\nContexto del Manual:\n{context}\n\nPregunta del Empleado: {question}\n\nRespuesta clara y concisa:",
}

// DocumentQA answers questions about arbitrary documents, with optional chat history
var DocumentQA = Template{
	Name:   "document-qa",
	System: "Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.",
	User:   "{history}{context}\n\nQuestion: {question}\nHelpful Answer:",
}

// Marketing turns a product idea into marketing copy, it has no context
var Marketing = Template{
	Name: "marketing",
	User: `
Eres un experto en marketing digital. A partir de la siguiente idea de producto o servicio:

"{idea}"

Genera lo siguiente:
1. Un pitch breve (2-3 líneas).
2. Un correo promocional (formal).
3. Un post para Instagram/Facebook.
4. Un slogan llamativo.
5. Preguntas frecuentes con respuestas (3).

Responde en formato organizado.
`,
}

// AdAnalysis asks for a score of an advertising image from its classification
var AdAnalysis = Template{
	Name: "ad-analysis",
	User: "\nUn publicista está evaluando una imagen publicitaria.\n\n{description}\n\n" +
		"Con base en lo anterior, ¿cómo evalúas la efectividad publicitaria de esta imagen? \n" +
		"Dame una puntuación del 0 al 100 y una breve recomendación de mejora.\n",
}
