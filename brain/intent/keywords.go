package intent

// All keyword matching runs on lowercased input. The stem lists live here in
// one place so they can be audited and extended without touching the
// extraction logic.

// tagKeywords maps each tag to its weighted stems. Scores are additive per
// stem found in the message.
var tagKeywords = map[Tag]map[string]int{
	TagElderContact: {
		"старш":   5,
		"контакт": 4,
		"телефон": 3,
	},
	TagCleaningMonth: {
		"уборк":  4,
		"график": 4,
		"убира":  3,
		"подмет": 2,
	},
	TagBrigade: {
		"бригад": 5,
	},
	TagStructuralTotals: {
		"квартир": 4,
		"подъезд": 4,
		"этаж":    3,
		"сколько": 2,
		"всего":   2,
	},
	TagFinanceBasic: {
		"финанс": 5,
		"доход":  3,
		"расход": 3,
		"прибыл": 3,
		"баланс": 3,
	},
	TagFinanceBreakdown: {
		"разбивк":    6,
		"по категор": 6,
		"категор":    3,
	},
	TagFinanceMoM: {
		"м/м":            10,
		"месяц к месяцу": 10,
	},
	TagFinanceYoY: {
		"г/г":         10,
		"год к году":  10,
		"годом ранее": 8,
	},
	TagFinanceCatTrends: {
		"тренд":    10,
		"динамик":  6,
		"изменени": 4,
	},
	TagContractorContacts: {
		"подрядчик": 8,
		"управляющ": 6,
	},
	TagTasksByAddress: {
		"задач": 6,
		"заявк": 5,
	},
	TagTasksByBrigade: {
		"задач":  6,
		"бригад": 2,
	},
}

// entityBonuses adds score for extracted entities per tag. Documented
// contracts depend on these: "бригада" + address without "задач" must pick
// brigade (5+2=7) over tasks_by_address (address alone, 3).
var entityBonuses = map[Tag]struct {
	address int
	month   int
	drange  int
	brigade int
}{
	TagElderContact:     {address: 2},
	TagCleaningMonth:    {address: 1, month: 3},
	TagBrigade:          {address: 2},
	TagStructuralTotals: {},
	TagFinanceBasic:     {drange: 1},
	TagTasksByAddress:   {address: 3},
	TagTasksByBrigade:   {brigade: 4},
}

// addressStopWords are query words that must never be misread as a street
// name by the direct "<street> <number>" pattern.
var addressStopWords = map[string]bool{
	"уборка": true, "уборки": true, "уборку": true, "уборке": true,
	"график": true, "графика": true, "графику": true,
	"контакт": true, "контакты": true, "контактов": true,
	"задач": true, "задачи": true, "задача": true, "заявки": true,
	"бригада": true, "бригады": true, "бригаде": true, "бригаду": true,
	"финансы": true, "финансов": true, "доходы": true, "расходы": true,
	"октябрь": true, "октября": true, "октябре": true,
	"ноябрь": true, "ноября": true, "ноябре": true,
	"декабрь": true, "декабря": true, "декабре": true,
	"сегодня": true, "завтра": true, "вчера": true,
	"адрес": true, "адресу": true, "дом": true, "дома": true, "доме": true,
	"месяц": true, "месяца": true, "неделя": true, "неделю": true,
	"квартал": true, "год": true, "года": true,
	"старший": true, "старшего": true, "старшему": true,
	"квартир": true, "квартиры": true, "подъездов": true, "этажей": true,
	"сколько": true, "какая": true, "какие": true, "какой": true,
	"убирает": true, "убирают": true, "показать": true, "покажи": true,
	"объект": true, "объекта": true, "телефон": true, "телефоны": true,
	"последние": true, "последний": true, "последнюю": true,
}

// knownStreets is the default known-street list for the direct address
// pattern. The list mirrors the streets of the managed housing stock; the
// suffix heuristic below covers everything else.
var knownStreets = []string{
	"кибальчича",
	"билибина",
	"ленина",
	"кирова",
	"никитина",
	"гагарина",
	"пушкина",
	"московская",
	"тульская",
	"терепецкая",
	"грабцевское шоссе",
	"маркса",
	"мира",
}

// streetSuffixes are common endings of Russian street names; a candidate
// token with one of these endings is accepted as a street even when it is
// not on the known list.
var streetSuffixes = []string{
	"ина", "ова", "ева", "ича",
	"ская", "ской", "ского", "кого",
	"ная", "ной", "ное", "ного",
	"цкая", "цкой",
	"шоссе",
}

// monthStems maps Russian month stems and short forms to month keys.
// Numeric forms (10, 10., 10/2025, 2025-10) are handled by regex in
// entities.go.
var monthStems = map[string]MonthKey{
	"октябр": MonthOctober,
	"окт":    MonthOctober,
	"ноябр":  MonthNovember,
	"ноя":    MonthNovember,
	"декабр": MonthDecember,
	"дек":    MonthDecember,
}

// genitiveMonths maps genitive month names ("3 октября") to month numbers.
var genitiveMonths = map[string]int{
	"января": 1, "февраля": 2, "марта": 3, "апреля": 4,
	"мая": 5, "июня": 6, "июля": 7, "августа": 8,
	"сентября": 9, "октября": 10, "ноября": 11, "декабря": 12,
}
