package query

import (
	"regexp"

	"docrouter/internal/model"
)

// spellCorrections is an exact lowercase token lookup. Unknown tokens pass
// through unchanged; there is no fuzzy matching.
var spellCorrections = map[string]string{
	// common typos
	"тскт": "текст", "докумнт": "документ", "информцаия": "информация",
	"сколко": "сколько", "откуд": "откуда", "гдe": "где", "што": "что",
	"чьо": "что",

	// legal/administrative vocabulary
	"зокон": "закон", "статъя": "статья", "порядак": "порядок",
	"процедуро": "процедура", "положени": "положение",

	// technical vocabulary
	"процес": "процесс", "методь": "метод", "алгоритьм": "алгоритм",
	"структуро": "структура", "организацыя": "организация",
	"учреждени": "учреждение",

	"teh": "the", "wich": "which", "recieve": "receive", "definiton": "definition",
	"proccess": "process", "documant": "document",
}

var stopWords = map[string]bool{
	"и": true, "в": true, "во": true, "не": true, "что": true, "он": true,
	"на": true, "я": true, "с": true, "со": true, "как": true, "а": true,
	"то": true, "все": true, "она": true, "так": true, "его": true, "но": true,
	"да": true, "ты": true, "к": true, "у": true, "же": true, "вы": true,
	"за": true, "бы": true, "по": true, "только": true, "ее": true, "мне": true,
	"было": true, "вот": true, "от": true, "меня": true, "еще": true, "нет": true,
	"о": true, "из": true, "ему": true, "теперь": true, "когда": true,
	"даже": true, "ну": true, "ли": true, "если": true, "уже": true, "или": true,
	"ни": true, "быть": true, "был": true, "него": true, "до": true, "вас": true,
	"вам": true, "ведь": true, "там": true, "потом": true, "себя": true,
	"ничего": true, "ей": true, "может": true, "они": true, "тут": true,
	"где": true, "есть": true, "надо": true, "ней": true, "для": true,
	"мы": true, "тебя": true, "их": true, "чем": true, "была": true,
	"сам": true, "чтоб": true, "без": true, "чего": true, "раз": true,
	"тоже": true, "себе": true, "под": true, "будет": true, "тогда": true,
	"кто": true, "этот": true, "того": true, "потому": true, "этого": true,
	"какой": true, "ним": true, "здесь": true, "этом": true, "один": true,
	"почти": true, "мой": true, "тем": true, "чтобы": true, "нее": true,
	"сейчас": true, "были": true, "куда": true, "зачем": true, "всех": true,
	"можно": true, "при": true, "об": true, "другой": true, "после": true,
	"над": true, "больше": true, "тот": true, "через": true, "эти": true,
	"нас": true, "про": true, "всего": true, "них": true, "какая": true,
	"много": true, "эту": true, "моя": true, "свою": true, "этой": true,
	"перед": true, "иногда": true, "лучше": true, "чуть": true, "том": true,
	"нельзя": true, "такой": true, "им": true, "более": true, "всегда": true,
	"конечно": true, "всю": true, "между": true,

	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "to": true, "of": true, "in": true,
	"on": true, "at": true, "by": true, "for": true, "with": true, "and": true,
	"or": true, "but": true, "not": true, "what": true, "which": true,
	"who": true, "how": true, "why": true, "when": true, "where": true,
	"this": true, "that": true, "these": true, "those": true, "it": true,
	"its": true, "do": true, "does": true, "did": true, "can": true,
	"could": true, "will": true, "would": true, "there": true, "about": true,
	"from": true, "into": true, "than": true, "then": true, "them": true,
	"they": true,
}

// interrogatives triggers question-mark auto-append during cleanup.
var interrogatives = []string{
	"что", "как", "где", "когда", "почему", "сколько",
	"what", "how", "where", "when", "why",
}

// intentRule binds an intent to its trigger patterns. Rules are checked in
// order and the first match wins: the order encodes a real priority policy,
// so do not reorder casually.
type intentRule struct {
	intent   model.Intent
	patterns []*regexp.Regexp
}

var intentRules = []intentRule{
	{model.IntentDefinition, compileAll(
		`что такое`, `определение`, `объясни`, `что означает`,
		`define`, `what is`, `explain`,
	)},
	{model.IntentComparison, compileAll(
		`разница между`, `отличие`, `сравни`, `чем отличается`,
		`difference between`, `compare`,
	)},
	{model.IntentProcedure, compileAll(
		`как делать`, `как сделать`, `процедура`, `пошагово`, `инструкция`,
		`how to`, `step by step`,
	)},
	{model.IntentQuantitative, compileAll(
		`сколько`, `количество`, `how many`, `how much`, `число`, `count`,
	)},
	{model.IntentTemporal, compileAll(
		`когда`, `время`, `дата`, `период`, `when`, `time`,
	)},
	{model.IntentLocation, compileAll(
		`где`, `место`, `адрес`, `where`, `location`,
	)},
	{model.IntentCausal, compileAll(
		`почему`, `причина`, `зачем`, `why`, `because`, `reason`,
	)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// expansionTemplates holds intent-specific query templates per language.
// %s is replaced with a keyword.
var expansionTemplates = map[model.Language]map[model.Intent][]string{
	model.LangRussian: {
		model.IntentDefinition:   {"определение %s", "%s это", "что означает %s"},
		model.IntentProcedure:    {"инструкция %s", "пошагово %s", "процедура %s"},
		model.IntentQuantitative: {"количество %s", "число %s", "сколько %s"},
	},
	model.LangEnglish: {
		model.IntentDefinition:   {"definition of %s", "%s meaning", "what is %s"},
		model.IntentProcedure:    {"how to %s", "steps to %s", "%s procedure"},
		model.IntentQuantitative: {"number of %s", "count of %s", "how many %s"},
	},
}

// synonyms drives expansion by substitution in the corrected query.
var synonyms = map[string][]string{
	"документ":   {"файл", "текст", "материал"},
	"информация": {"данные", "сведения", "факты"},
	"процесс":    {"процедура", "алгоритм", "метод"},
	"система":    {"механизм", "структура", "схема"},
	"document":   {"file", "record", "text"},
	"process":    {"procedure", "method"},
}
