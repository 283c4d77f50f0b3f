package flow

import (
	"regexp"
	"strings"
)

// System prompts for the generation client. Kept short; the model does the
// language work.

const languageDetectSystemPrompt = `You are a language identifier.
The user wrote a message. Reply with ONLY the ISO 639-1 code of the language it is written in (for example "en", "fr", "es").
If you cannot tell, reply with exactly "und". No other text.`

const areasSystemPrompt = `You are a copywriter. Produce a very short bullet-list message in the user's chosen language that says:

"Which areas would you like to focus on? You can choose multiple:
- Personal Development
- Health & Wellness
- Professional Growth
- Relationships & Social
- Lifestyle

Which ones interest you the most?"

Keep it under 50 words. Return only the final text in the correct language, no explanation.`

const planSystemPrompt = `You are a life coach. The user wants to focus on certain areas.
Generate exactly 5 short coaching questions in the user's language.
They should be direct, simple, and help you understand the user's goals, motivations, and obstacles.
Return them as a bullet list, no extra text.`

const closingSystemPrompt = `You are a friendly, human-like coach. The user just finished answering your intake questions.
Write a short warm message in the user's language thanking them, summarizing nothing, and inviting them to start chatting about whatever they want to work on.
Keep it under 40 words.`

const mainSystemPrompt = `You are a friendly, human-like coach having a normal conversation in the user's language.
Ask clarifying questions, keep context, do not reveal you are an AI.
Keep messages fairly short, but natural.`

// localize picks the variant for a language code, falling back to English.
func localize(m map[string]string, lang string) string {
	if s, ok := m[lang]; ok {
		return s
	}
	return m["en"]
}

var greetings = map[string]string{
	"en": "Hi! I'm your personal coach. Great to meet you.",
	"fr": "Bonjour ! Je suis votre coach personnel. Ravi de vous rencontrer.",
	"es": "¡Hola! Soy tu coach personal. Encantado de conocerte.",
}

// languagePrompt is shown when no language could be detected from the first
// message. It is deliberately multilingual.
const languagePrompt = "Which language would you like to use? / Quelle langue souhaitez-vous utiliser ? / ¿Qué idioma te gustaría usar?\n(English / Français / Español)"

var profileQuestions = map[ProfileField]map[string]string{
	FieldName: {
		"en": "What's your first name?",
		"fr": "Quel est votre prénom ?",
		"es": "¿Cuál es tu nombre?",
	},
	FieldAge: {
		"en": "How old are you?",
		"fr": "Quel âge avez-vous ?",
		"es": "¿Cuántos años tienes?",
	},
	FieldHeight: {
		"en": "How tall are you, in centimeters?",
		"fr": "Quelle est votre taille, en centimètres ?",
		"es": "¿Cuánto mides, en centímetros?",
	},
	FieldCurrentWeight: {
		"en": "What's your current weight, in kilograms?",
		"fr": "Quel est votre poids actuel, en kilogrammes ?",
		"es": "¿Cuál es tu peso actual, en kilogramos?",
	},
	FieldTargetWeight: {
		"en": "What weight would you like to reach, in kilograms?",
		"fr": "Quel poids aimeriez-vous atteindre, en kilogrammes ?",
		"es": "¿Qué peso te gustaría alcanzar, en kilogramos?",
	},
	FieldTargetDate: {
		"en": "By what date? (YYYY-MM-DD)",
		"fr": "Pour quelle date ? (AAAA-MM-JJ)",
		"es": "¿Para qué fecha? (AAAA-MM-DD)",
	},
}

var clarifications = map[ProfileField]map[string]string{
	FieldName: {
		"en": "Sorry, I didn't catch that. What's your first name?",
		"fr": "Désolé, je n'ai pas compris. Quel est votre prénom ?",
		"es": "Perdona, no lo he entendido. ¿Cuál es tu nombre?",
	},
	FieldAge: {
		"en": "Please give me your age as a number between 12 and 100.",
		"fr": "Merci d'indiquer votre âge, un nombre entre 12 et 100.",
		"es": "Por favor, dime tu edad con un número entre 12 y 100.",
	},
	FieldHeight: {
		"en": "Please give me your height in centimeters, between 100 and 250.",
		"fr": "Merci d'indiquer votre taille en centimètres, entre 100 et 250.",
		"es": "Por favor, dime tu altura en centímetros, entre 100 y 250.",
	},
	FieldCurrentWeight: {
		"en": "Please give me your weight in kilograms, between 30 and 300.",
		"fr": "Merci d'indiquer votre poids en kilogrammes, entre 30 et 300.",
		"es": "Por favor, dime tu peso en kilogramos, entre 30 y 300.",
	},
	FieldTargetWeight: {
		"en": "Please give me your target weight in kilograms, between 30 and 300.",
		"fr": "Merci d'indiquer votre poids cible en kilogrammes, entre 30 et 300.",
		"es": "Por favor, dime tu peso objetivo en kilogramos, entre 30 y 300.",
	},
	FieldTargetDate: {
		"en": "Please give me a future date within the next two years, like 2027-03-01.",
		"fr": "Merci d'indiquer une date future dans les deux prochaines années, par exemple 2027-03-01.",
		"es": "Por favor, dame una fecha futura dentro de los próximos dos años, como 2027-03-01.",
	},
}

var areasFallbacks = map[string]string{
	"en": "Which areas do you want to focus on?\n\n- Personal Development\n- Health & Wellness\n- Professional Growth\n- Relationships & Social\n- Lifestyle\n\nWhich ones interest you the most?",
	"fr": "Sur quels domaines souhaitez-vous vous concentrer ?\n\n- Développement personnel\n- Santé & bien-être\n- Évolution professionnelle\n- Relations & vie sociale\n- Mode de vie\n\nLesquels vous intéressent le plus ?",
	"es": "¿En qué áreas quieres centrarte?\n\n- Desarrollo personal\n- Salud y bienestar\n- Crecimiento profesional\n- Relaciones y vida social\n- Estilo de vida\n\n¿Cuáles te interesan más?",
}

// fallbackQuestions is used when plan generation fails.
var fallbackQuestions = map[string][]string{
	"en": {
		"What motivates you about these areas?",
		"How do you see your life changing if you succeed?",
		"What obstacles might stand in your way?",
		"How will you measure progress?",
		"Who can support you in this journey?",
	},
	"fr": {
		"Qu'est-ce qui vous motive dans ces domaines ?",
		"Comment voyez-vous votre vie changer si vous réussissez ?",
		"Quels obstacles pourraient se dresser sur votre chemin ?",
		"Comment mesurerez-vous vos progrès ?",
		"Qui peut vous soutenir dans ce parcours ?",
	},
	"es": {
		"¿Qué te motiva de estas áreas?",
		"¿Cómo ves tu vida cambiando si lo consigues?",
		"¿Qué obstáculos podrían interponerse en tu camino?",
		"¿Cómo medirás tu progreso?",
		"¿Quién puede apoyarte en este camino?",
	},
}

var closingFallbacks = map[string]string{
	"en": "Thank you! I have everything I need. From now on, just write to me whenever you want to talk, and we'll work on your goals together.",
	"fr": "Merci ! J'ai tout ce qu'il me faut. À partir de maintenant, écrivez-moi quand vous voulez, et nous travaillerons ensemble sur vos objectifs.",
	"es": "¡Gracias! Ya tengo todo lo que necesito. A partir de ahora, escríbeme cuando quieras y trabajaremos juntos en tus objetivos.",
}

// apologies is the fixed fallback reply when generation fails in active
// conversation.
var apologies = map[string]string{
	"en": "Sorry, I had an issue answering. Could you say that again?",
	"fr": "Désolé, j'ai eu un souci pour répondre. Pouvez-vous répéter ?",
	"es": "Perdona, he tenido un problema al responder. ¿Puedes repetirlo?",
}

var languageCodeRe = regexp.MustCompile(`^[a-z]{2}$`)

// languageKeywords maps explicit language mentions to codes, used before
// asking the model.
var languageKeywords = map[string]string{
	"english":  "en",
	"anglais":  "en",
	"ingles":   "en",
	"inglés":   "en",
	"en":       "en",
	"french":   "fr",
	"français": "fr",
	"francais": "fr",
	"frances":  "fr",
	"francés":  "fr",
	"fr":       "fr",
	"spanish":  "es",
	"espagnol": "es",
	"español":  "es",
	"espanol":  "es",
	"es":       "es",
}

// parseLanguageKeyword matches a short explicit language choice such as
// "English" or "français". Returns "" when the text is not such a choice.
func parseLanguageKeyword(text string) string {
	t := strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(text), ".!")))
	if code, ok := languageKeywords[t]; ok {
		return code
	}
	return ""
}

// parsePlanQuestions splits a generated bullet list into individual
// questions, stripping bullet markers and numbering.
func parsePlanQuestions(text string) []string {
	var questions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		line = strings.TrimSpace(line)
		if line != "" {
			questions = append(questions, line)
		}
	}
	return questions
}
