package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/yaadak/yaadak/internal/calendar"
	"github.com/yaadak/yaadak/internal/domain/entities"
)

// categoriesLine lists the categories the model may pick. Internal
// categories (pre-notices, installment retries) are created by the
// services, never by the model.
const categoriesLine = "medicine, birthday, anniversary, installment, bill, appointment, work, exercise, prayer, shopping, call, study, general"

const repeatGrammar = `"repeat" is one of:
{"type":"none"} {"type":"daily"} {"type":"weekly","weekday":1..7}
{"type":"monthly","day":1..31} {"type":"yearly"}
{"type":"interval","value":N,"unit":"minutes"|"hours"|"days"}`

// parseSystemPrompt builds the deterministic instruction block for parsing
// a free-text utterance into reminder descriptors. The current date is
// rendered in the user's own calendar so relative phrases resolve there.
func parseSystemPrompt(lang string, nowLocal time.Time, cal calendar.Calendar) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You convert the user's message into reminders. Reply with JSON only, no prose.\n")
	fmt.Fprintf(&b, "Now it is %s (%s calendar), weekday %s. User language: %s.\n",
		calendar.FormatDate(nowLocal, cal), cal, nowLocal.Weekday(), lang)
	fmt.Fprintf(&b, "Schema: {\"reminders\":[{\"category\",\"content\",\"time\":\"HH:MM\"|null,"+
		"\"specific_date\":{\"day\",\"month\",\"year\"?,\"calendar\"?}?,"+
		"\"relative_days\"?,\"relative_minutes\"?,\"today\"?,\"repeat\"}],\"message\":null}\n")
	fmt.Fprintf(&b, "Categories: %s. Unknown concepts map to general.\n", categoriesLine)
	b.WriteString(repeatGrammar)
	b.WriteString("\ncontent is a short imperative, at most 40 characters, in the user's language.\n")
	fmt.Fprintf(&b, "Dates the user gives without naming a calendar are in the %s calendar.\n", cal)
	b.WriteString("If the message is not a reminder, reply {\"reminders\":[],\"message\":\"ai_error\"}.")

	return b.String()
}

// editSystemPrompt instructs the model to emit only the fields that change.
func editSystemPrompt(lang string, nowLocal time.Time, cal calendar.Calendar, current *entities.Reminder) string {
	local := current.LocalFireTime()
	var b strings.Builder

	fmt.Fprintf(&b, "You edit an existing reminder. Reply with JSON only, containing ONLY the fields the user wants changed.\n")
	fmt.Fprintf(&b, "Now it is %s (%s calendar). User language: %s.\n",
		calendar.FormatDate(nowLocal, cal), cal, lang)
	fmt.Fprintf(&b, "Current reminder: category=%s content=%q scheduled=%s repeat=%s\n",
		current.Category, current.Content, calendar.FormatDate(local, cal), current.Repeat.Serialize())
	fmt.Fprintf(&b, "Schema: {\"category\"?,\"content\"?,\"time\":\"HH:MM\"?,"+
		"\"specific_date\":{\"day\",\"month\",\"year\"?}?,\"repeat\"?}\n")
	fmt.Fprintf(&b, "Categories: %s.\n", categoriesLine)
	b.WriteString(repeatGrammar)
	b.WriteString("\nOmit every field the user did not mention. If nothing can be understood, reply {}.")

	return b.String()
}

const timezoneSystemPrompt = `The user names a city or place. Reply with JSON only:
{"city":"<canonical English city name>","offset":"±HH:MM"}
offset is the current UTC offset of that place. If you cannot identify the place, reply {"city":null,"offset":null}.`
