package content

import "github.com/stella-ai/tracegraph/pkg/schema"

// Supported display languages. French is the assistant's default.
const (
	LangFR = "fr"
	LangEN = "en"
)

// NormalizeLang maps an arbitrary language tag to a supported one.
func NormalizeLang(lang string) string {
	if lang == LangEN {
		return LangEN
	}
	return LangFR
}

// Message keys for localized static text.
const (
	msgUserQuery      = "user_query"
	msgAnalyze        = "analyze"
	msgNewsRequest    = "news_request"
	msgChartRequest   = "chart_request"
	msgProfileRequest = "profile_request"
	msgCompareRequest = "compare_request"
	msgNoArguments    = "no_arguments"
	msgFallback       = "fallback"
	msgFallbackDetail = "fallback_detail"
	msgToolArguments  = "tool_arguments"
)

var stageText = map[string]map[string][2]string{
	LangFR: {
		schema.StageStart:                 {"Début", "Début de la session"},
		schema.StageAgent:                 {"Agent", "Décision de l'agent"},
		schema.StageExecuteTool:           {"Exécution d'outil", "Exécute les outils demandés"},
		schema.StageGenerateFinalResponse: {"Réponse finale", "Synthèse de l'analyse"},
		schema.StageCleanupState:          {"Nettoyage", "Nettoyage de l'état"},
		schema.StagePrepareDataDisplay:    {"Affichage données", "Préparation des données"},
		schema.StagePrepareChartDisplay:   {"Affichage graphique", "Préparation du graphique"},
		schema.StagePrepareNewsDisplay:    {"Affichage actualités", "Préparation des actualités"},
		schema.StagePrepareProfileDisplay: {"Affichage profil", "Préparation du profil"},
		schema.StageHandleError:           {"Erreur", "Gestion de l'erreur"},
		schema.StageEnd:                   {"Fin", "Fin de la session"},
	},
	LangEN: {
		schema.StageStart:                 {"Start", "Session start"},
		schema.StageAgent:                 {"Agent", "Agent decision"},
		schema.StageExecuteTool:           {"Tool Execution", "Runs the requested tools"},
		schema.StageGenerateFinalResponse: {"Final Response", "Analysis summary"},
		schema.StageCleanupState:          {"Cleanup", "State cleanup"},
		schema.StagePrepareDataDisplay:    {"Data Display", "Data preparation"},
		schema.StagePrepareChartDisplay:   {"Chart Display", "Chart preparation"},
		schema.StagePrepareNewsDisplay:    {"News Display", "News preparation"},
		schema.StagePrepareProfileDisplay: {"Profile Display", "Profile preparation"},
		schema.StageHandleError:           {"Error", "Error handling"},
		schema.StageEnd:                   {"End", "Session end"},
	},
}

var messages = map[string]map[string]string{
	LangFR: {
		msgUserQuery:      "Requête utilisateur",
		msgAnalyze:        "Analyser %s",
		msgNewsRequest:    "Demande d'actualités",
		msgChartRequest:   "Demande de graphique",
		msgProfileRequest: "Demande de profil",
		msgCompareRequest: "Demande de comparaison",
		msgNoArguments:    "Aucun argument",
		msgFallback:       "Étape",
		msgFallbackDetail: "Contenu indisponible",
		msgToolArguments:  "Arguments",
	},
	LangEN: {
		msgUserQuery:      "User Query",
		msgAnalyze:        "Analyze %s",
		msgNewsRequest:    "News Information Request",
		msgChartRequest:   "Chart Request",
		msgProfileRequest: "Company Profile Request",
		msgCompareRequest: "Comparison Request",
		msgNoArguments:    "No arguments",
		msgFallback:       "Step",
		msgFallbackDetail: "Content unavailable",
		msgToolArguments:  "Arguments",
	},
}

func msg(lang, key string) string {
	if m, ok := messages[NormalizeLang(lang)]; ok {
		if s, ok := m[key]; ok {
			return s
		}
	}
	return messages[LangFR][key]
}

// stageLabels returns the localized (label, description) pair for a stage,
// falling back to the catalog's default label.
func stageLabels(lang, stageID, fallback string) (string, string) {
	if m, ok := stageText[NormalizeLang(lang)]; ok {
		if pair, ok := m[stageID]; ok {
			return pair[0], pair[1]
		}
	}
	return fallback, ""
}
