package intent

// Domain identifies a task category served by a specialized agent.
type Domain string

const (
	DomainReminder Domain = "reminder"
	DomainTodo     Domain = "todo"
	DomainMessage  Domain = "message"
)

// Actions are the enumerated task verbs a classifier can produce.
const (
	ActionSetReminder   = "set_reminder"
	ActionListReminders = "list_reminders"
	ActionAddTodo       = "add_todo"
	ActionListTodos     = "list_todos"
	ActionListEmails    = "list_emails"
	ActionComposeEmail  = "compose_email"
	ActionSendEmail     = "send_email"
	ActionScheduleEmail = "schedule_email"
	ActionSearchEmail   = "search_email"
	ActionEmailSummary  = "email_summary"
	ActionManageEmail   = "manage_email"
	ActionEmailGeneral  = "email_general"
)

// Slot names shared between classifiers, the router, and agents.
const (
	SlotTime        = "time"
	SlotDescription = "description"
	SlotTask        = "task"
	SlotPriority    = "priority"
	SlotRecipients  = "recipients"
)

// Details is the output of one classifier for one utterance. It is built
// once, read by the router, and discarded; only the routing outcome is
// persisted.
type Details struct {
	Action     string
	Confidence float64
	Slots      map[string]string
}

// Has reports whether a slot was extracted.
func (d Details) Has(slot string) bool {
	_, ok := d.Slots[slot]
	return ok
}

// Slot returns the extracted raw string for a slot, or "".
func (d Details) Slot(slot string) string {
	return d.Slots[slot]
}

func (d *Details) setSlot(slot, value string) {
	if d.Slots == nil {
		d.Slots = make(map[string]string)
	}
	d.Slots[slot] = value
}

// Result pairs a classifier verdict with its details.
type Result struct {
	Matched bool
	Details Details
}

// Detections holds the three domain classifier outputs for one utterance.
type Detections struct {
	Reminder Result
	Todo     Result
	Message  Result
}

// ByDomain returns the result for a domain.
func (d Detections) ByDomain(domain Domain) Result {
	switch domain {
	case DomainReminder:
		return d.Reminder
	case DomainTodo:
		return d.Todo
	case DomainMessage:
		return d.Message
	}
	return Result{}
}

// Detect runs all domain classifiers against one utterance.
func Detect(text string) Detections {
	var det Detections
	det.Reminder.Matched, det.Reminder.Details = DetectReminderIntent(text)
	det.Todo.Matched, det.Todo.Details = DetectTodoIntent(text)
	det.Message.Matched, det.Message.Details = DetectMessageIntent(text)
	return det
}
