package intent

import "regexp"

// Classifier precedence is data, not conditionals: each domain carries an
// ordered rule table. listPattern short-circuits everything else in the
// domain; structural patterns score 0.9; the keyword path scores 0.8 and
// additionally requires the domain's secondary signal.
const (
	structuralConfidence = 0.9
	keywordConfidence    = 0.8
	listConfidence       = 1.0
)

type domainRules struct {
	domain      Domain
	listPattern *regexp.Regexp
	listAction  string
	patterns    []*regexp.Regexp
	keywords    []string
	secondary   func(text string) bool
}

// TodoKeywords suppress reminder detection (one-directional cross-domain
// exclusion) and drive the router's explicit-mention fallback.
var TodoKeywords = []string{
	"todo", "to-do", "to do's", "to do", "task", "item", "project", "checklist",
}

// ReminderKeywords drive the reminder keyword path and the router fallback.
var ReminderKeywords = []string{
	"reminder", "remind", "alert", "notify", "alarm",
}

// MessageKeywords drive the message/communication keyword path.
var MessageKeywords = []string{
	"email", "e-mail", "mail", "message", "inbox",
}

var actionVerbs = regexp.MustCompile(`(?i)\b(add|create|make|put|new|set)\b`)

var reminderRules = domainRules{
	domain:      DomainReminder,
	listPattern: regexp.MustCompile(`(?i)\b(?:show|list|display|what are|see)\b.*\b(?:all\s+)?(?:my\s+)?reminders\b`),
	listAction:  ActionListReminders,
	patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bremind\s+me\b`),
		regexp.MustCompile(`(?i)\bset\s+(?:a|an)?\s*reminder\b`),
		regexp.MustCompile(`(?i)\bdon'?t\s+let\s+me\s+forget\b`),
		regexp.MustCompile(`(?i)\bwake\s+me\b`),
	},
	keywords: ReminderKeywords,
	secondary: func(text string) bool {
		if _, ok := ExtractTime(text); ok {
			return true
		}
		return actionVerbs.MatchString(text)
	},
}

var todoRules = domainRules{
	domain:      DomainTodo,
	listPattern: regexp.MustCompile(`(?i)\b(?:show|list|display|what are|see)\b.*\b(?:all\s+)?(?:my\s+)?(?:todos?|to-?do'?s?|tasks)\b`),
	listAction:  ActionListTodos,
	patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\badd\b.*\bto\s+my\s+(?:to\s?do'?s?|todo|task)s?\b`),
		regexp.MustCompile(`(?i)\b(?:add|create|make)\s+(?:a|an)?\s*(?:new\s+)?(?:task|todo|to-do|item)\b`),
		regexp.MustCompile(`(?i)\bi\s+(?:want|need)\s+to\s+add\b`),
	},
	keywords: TodoKeywords,
	secondary: func(text string) bool {
		if _, ok := ExtractPriority(text); ok {
			return true
		}
		if _, ok := ExtractTime(text); ok {
			return true
		}
		return actionVerbs.MatchString(text)
	},
}

var messageRules = domainRules{
	domain:      DomainMessage,
	listPattern: regexp.MustCompile(`(?i)\b(?:show|list|display|what are|see)\b.*\b(?:all\s+)?(?:my\s+)?(?:emails?|messages?|mail)\b`),
	listAction:  ActionListEmails,
	patterns: []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:send|write|compose|draft)\s+(?:a|an)?\s*(?:email|e-mail|message|mail)\b`),
		regexp.MustCompile(`(?i)\bemail\b.*\bto\b`),
	},
	keywords: MessageKeywords,
	secondary: func(text string) bool {
		if _, ok := extractRecipients(text); ok {
			return true
		}
		return messageVerbs.MatchString(text)
	},
}

var messageVerbs = regexp.MustCompile(`(?i)\b(send|write|compose|draft|schedule|search|find|summarize|archive|delete|reply)\b`)

// messageActionGroups map the first matching keyword group to the message
// sub-action, in fixed precedence: compose > send > schedule > search >
// summary > manage > general.
var messageActionGroups = []struct {
	action  string
	pattern *regexp.Regexp
}{
	{ActionComposeEmail, regexp.MustCompile(`(?i)\b(compose|write|draft)\b`)},
	{ActionSendEmail, regexp.MustCompile(`(?i)\bsend\b`)},
	{ActionScheduleEmail, regexp.MustCompile(`(?i)\bschedule\b`)},
	{ActionSearchEmail, regexp.MustCompile(`(?i)\b(search|find|look\s+for)\b`)},
	{ActionEmailSummary, regexp.MustCompile(`(?i)\b(summar(?:y|ize|ise))\b`)},
	{ActionManageEmail, regexp.MustCompile(`(?i)\b(archive|delete|move|mark|label)\b`)},
}

// ClarificationPatterns force routing to the todo agent when the user is
// explicitly correcting a prior misroute.
var ClarificationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bi\s+(?:want|need|asked\s+you\s+to)\b.*\bto\s?do\b`),
	regexp.MustCompile(`(?i)\bno[,.]?\s+(?:i\s+)?(?:meant|said)\b.*\b(?:task|todo|to\s?do)\b`),
}

// DomainKeywords returns the keyword set attached to Context as routing
// bias after an interaction with the given domain.
func DomainKeywords(domain Domain) []string {
	switch domain {
	case DomainReminder:
		return ReminderKeywords
	case DomainTodo:
		return TodoKeywords
	case DomainMessage:
		return MessageKeywords
	}
	return nil
}
