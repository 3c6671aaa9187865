package entities

// Category classifies a reminder and drives the notification payload and
// follow-up policy. The set is closed; unknown input is coerced to general.
type Category string

const (
	CategoryGeneral          Category = "general"
	CategoryMedicine         Category = "medicine"
	CategoryBirthday         Category = "birthday"
	CategoryBirthdayPreWeek  Category = "birthday_pre_week"
	CategoryBirthdayPreThree Category = "birthday_pre_three"
	CategoryAnniversary      Category = "anniversary"
	CategoryInstallment      Category = "installment"
	CategoryInstallmentRetry Category = "installment_retry"
	CategoryAppointment      Category = "appointment"
	CategoryWork             Category = "work"
	CategoryExercise         Category = "exercise"
	CategoryPrayer           Category = "prayer"
	CategoryShopping         Category = "shopping"
	CategoryCall             Category = "call"
	CategoryStudy            Category = "study"
	CategoryBill             Category = "bill"
)

// Action is an inline button offered with a notification. The callback wire
// format is "<prefix>_<reminder id>".
type Action struct {
	LabelID        string // i18n message id
	CallbackPrefix string
}

// Payload describes how notifications for a category look.
type Payload struct {
	Emoji   string
	Actions []Action
}

var (
	actionTaken = Action{LabelID: "action_taken", CallbackPrefix: "taken"}
	actionPaid  = Action{LabelID: "action_paid", CallbackPrefix: "paid"}
	actionStop  = Action{LabelID: "action_stop", CallbackPrefix: "stop"}
)

// payloads is the closed category -> (emoji, actions) dispatch table.
var payloads = map[Category]Payload{
	CategoryGeneral:          {Emoji: "⏰"},
	CategoryMedicine:         {Emoji: "💊", Actions: []Action{actionTaken}},
	CategoryBirthday:         {Emoji: "🎂", Actions: []Action{actionStop}},
	CategoryBirthdayPreWeek:  {Emoji: "📅", Actions: []Action{actionStop}},
	CategoryBirthdayPreThree: {Emoji: "📅", Actions: []Action{actionStop}},
	CategoryAnniversary:      {Emoji: "🎂", Actions: []Action{actionStop}},
	CategoryInstallment:      {Emoji: "💳", Actions: []Action{actionPaid, actionStop}},
	CategoryInstallmentRetry: {Emoji: "💳⚠️", Actions: []Action{actionPaid, actionStop}},
	CategoryAppointment:      {Emoji: "📅"},
	CategoryWork:             {Emoji: "💼"},
	CategoryExercise:         {Emoji: "🏃"},
	CategoryPrayer:           {Emoji: "🕌"},
	CategoryShopping:         {Emoji: "🛒"},
	CategoryCall:             {Emoji: "📞"},
	CategoryStudy:            {Emoji: "📚"},
	CategoryBill:             {Emoji: "💳", Actions: []Action{actionPaid, actionStop}},
}

// ParseCategory coerces an arbitrary string to a known category.
func ParseCategory(s string) Category {
	if _, ok := payloads[Category(s)]; ok {
		return Category(s)
	}
	return CategoryGeneral
}

// NotificationPayload returns the emoji and actions for the category.
func (c Category) NotificationPayload() Payload {
	if p, ok := payloads[c]; ok {
		return p
	}
	return payloads[CategoryGeneral]
}
