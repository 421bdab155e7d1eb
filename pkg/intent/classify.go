package intent

import (
	"regexp"
	"strings"
)

// ContainsAnyKeyword reports whether text (lowercased by the caller or not)
// contains any keyword as a substring, case-insensitively.
func ContainsAnyKeyword(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// matchRules runs a domain table against text. The list pattern
// short-circuits; otherwise detection is a union of the structural
// patterns and the keyword+secondary path.
func matchRules(rules domainRules, text string) (matched bool, listHit bool, confidence float64) {
	if rules.listPattern.MatchString(text) {
		return true, true, listConfidence
	}
	for _, re := range rules.patterns {
		if re.MatchString(text) {
			return true, false, structuralConfidence
		}
	}
	if ContainsAnyKeyword(text, rules.keywords) && rules.secondary != nil && rules.secondary(text) {
		return true, false, keywordConfidence
	}
	return false, false, 0
}

var reminderLeadPhrases = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^.*?\bremind\s+me\s+(?:to|about|that)?\b`),
	regexp.MustCompile(`(?i)^.*?\bset\s+(?:a|an)?\s*reminder\s+(?:to|for|about)?\b`),
	regexp.MustCompile(`(?i)^.*?\bdon'?t\s+let\s+me\s+forget\s+(?:to|about)?\b`),
}

// extractReminderDescription is what remains after the command phrase and
// the time expression are removed.
func extractReminderDescription(text string) (string, bool) {
	rest := text
	for _, re := range reminderLeadPhrases {
		if loc := re.FindStringIndex(rest); loc != nil {
			rest = rest[loc[1]:]
			break
		}
	}
	if tm, ok := ExtractTime(rest); ok {
		rest = strings.Replace(rest, tm, "", 1)
	}
	rest = trimTaskText(stripPhrases(rest, []string{
		"set", "reminder", "remind", "me", "please",
		"tomorrow", "today", "tonight", "at", "in the",
	}))
	if len(rest) >= 2 {
		return rest, true
	}
	return "", false
}

// DetectReminderIntent classifies reminder-domain utterances.
//
// Any todo keyword in the text suppresses reminder detection entirely
// (except for an explicit list request): "add a task to remind myself"
// belongs to the todo agent. The suppression is one-directional.
func DetectReminderIntent(text string) (bool, Details) {
	matched, listHit, conf := matchRules(reminderRules, text)
	if listHit {
		return true, Details{Action: ActionListReminders, Confidence: conf}
	}
	if ContainsAnyKeyword(text, TodoKeywords) {
		return false, Details{}
	}
	if !matched {
		return false, Details{}
	}

	d := Details{Action: ActionSetReminder, Confidence: conf}
	if tm, ok := ExtractTime(text); ok {
		d.setSlot(SlotTime, tm)
	}
	if desc, ok := extractReminderDescription(text); ok {
		d.setSlot(SlotDescription, desc)
	}
	return true, d
}

// DetectTodoIntent classifies todo-domain utterances.
func DetectTodoIntent(text string) (bool, Details) {
	matched, listHit, conf := matchRules(todoRules, text)
	if listHit {
		return true, Details{Action: ActionListTodos, Confidence: conf}
	}
	if !matched {
		return false, Details{}
	}

	d := Details{Action: ActionAddTodo, Confidence: conf}
	if task, ok := ExtractTask(text); ok {
		d.setSlot(SlotTask, task)
	}
	if prio, ok := ExtractPriority(text); ok {
		d.setSlot(SlotPriority, prio)
	}
	if tm, ok := ExtractTime(text); ok {
		d.setSlot(SlotTime, tm)
	}
	return true, d
}

// DetectMessageIntent classifies communication-domain utterances. The
// sub-action comes from the first keyword group hit in fixed precedence.
func DetectMessageIntent(text string) (bool, Details) {
	matched, listHit, conf := matchRules(messageRules, text)
	if listHit {
		return true, Details{Action: ActionListEmails, Confidence: conf}
	}
	if !matched {
		return false, Details{}
	}

	action := ActionEmailGeneral
	for _, group := range messageActionGroups {
		if group.pattern.MatchString(text) {
			action = group.action
			break
		}
	}

	d := Details{Action: action, Confidence: conf}
	if rcpt, ok := extractRecipients(text); ok {
		d.setSlot(SlotRecipients, rcpt)
	}
	if tm, ok := ExtractTime(text); ok {
		d.setSlot(SlotTime, tm)
	}
	return true, d
}
