package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Time patterns in strict priority order. The first hit wins; later
// patterns never override an earlier one.
var (
	reClockMeridiem = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(am|pm)\b`)
	reHourMeridiem  = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\b`)
	reBareClock     = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	reOClock        = regexp.MustCompile(`(?i)\b(\d{1,2})\s*o'?clock\b`)
	reBareHour      = regexp.MustCompile(`(?i)\b(?:at|for|by|around)\s+(\d{1,2})\b`)
	rePeriod        = regexp.MustCompile(`(?i)\b(morning|afternoon|evening|night)\b`)
	reRelativeDay   = regexp.MustCompile(`(?i)\b(?:tomorrow|today|tonight)\s+(?:at\s+)?(\d{1,2})(:\d{2})?\s*(am|pm)?\b`)
	reVaguePeriod   = regexp.MustCompile(`(?i)\bin\s+the\s+(morning|afternoon|evening|night)\b`)
)

// meridiemFor qualifies a bare hour: before noon reads as am, otherwise pm.
func meridiemFor(hour string) string {
	n, err := strconv.Atoi(hour)
	if err != nil || n < 12 {
		return "am"
	}
	return "pm"
}

// ExtractTime scans text for the first temporal expression, in priority
// order, and returns it verbatim except that an unqualified hour gets
// am/pm appended. Pure and deterministic.
func ExtractTime(text string) (string, bool) {
	if m := reClockMeridiem.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[0]), true
	}
	if m := reHourMeridiem.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[0]), true
	}
	if m := reBareClock.FindStringSubmatch(text); m != nil {
		return m[0] + " " + meridiemFor(m[1]), true
	}
	if m := reOClock.FindStringSubmatch(text); m != nil {
		return m[1] + " " + meridiemFor(m[1]), true
	}
	if m := reBareHour.FindStringSubmatch(text); m != nil {
		return m[1] + " " + meridiemFor(m[1]), true
	}
	if m := rePeriod.FindStringSubmatch(text); m != nil {
		return strings.ToLower(m[1]), true
	}
	if m := reRelativeDay.FindStringSubmatch(text); m != nil {
		if m[3] != "" {
			return strings.TrimSpace(m[0]), true
		}
		return strings.TrimSpace(m[0]) + " " + meridiemFor(m[1]), true
	}
	if m := reVaguePeriod.FindStringSubmatch(text); m != nil {
		return strings.ToLower(strings.TrimSpace(m[0])), true
	}
	return "", false
}

// Polite openers removed before task capture so patterns see the command
// itself.
var politeFillers = []string{
	"please",
	"can you",
	"could you",
	"would you",
	"i want you to",
	"i need you to",
}

var taskCapturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\badd\s+(.+?)\s+to\s+my\s+(?:to\s?do'?s?|todo|task)s?\b`),
	regexp.MustCompile(`(?i)\badd\s+(.+)$`),
	regexp.MustCompile(`(?i)\b(?:todo|task)\s+for\s+(.+)$`),
}

// taskFillers are stripped for the bare-remainder fallback.
var taskFillers = []string{
	"add", "create", "make", "new",
	"to my", "to do's", "to-do", "todo", "to do",
	"task", "item", "list", "please",
	"i want to", "i need to",
}

// vagueTaskWords are placeholders, not task content. "add something" means
// the user has not said what to add yet.
var vagueTaskWords = map[string]bool{
	"something": true, "anything": true, "stuff": true,
	"things": true, "it": true, "this": true, "that": true,
}

func stripPhrases(text string, phrases []string) string {
	out := text
	for _, p := range phrases {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(p) + `\b`)
		out = re.ReplaceAllString(out, " ")
	}
	return collapseSpaces(out)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func trimTaskText(s string) string {
	return strings.Trim(strings.TrimSpace(s), ".,!?;:\"'")
}

// ExtractTask pulls the free-text task description out of an utterance.
// Capture patterns run first; when none hit, the filler-stripped remainder
// is used if it still carries at least two characters.
func ExtractTask(text string) (string, bool) {
	cleaned := stripPhrases(text, politeFillers)

	for _, re := range taskCapturePatterns {
		if m := re.FindStringSubmatch(cleaned); m != nil {
			if task := trimTaskText(m[1]); task != "" && !vagueTaskWords[strings.ToLower(task)] {
				return task, true
			}
		}
	}

	remainder := trimTaskText(stripPhrases(cleaned, taskFillers))
	if len(remainder) >= 2 && !vagueTaskWords[strings.ToLower(remainder)] {
		return remainder, true
	}
	return "", false
}

var priorityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(low|medium|high|urgent|important)\s+priority\b`),
	regexp.MustCompile(`(?i)\bpriority\s*(?:is|:)?\s*(low|medium|high|urgent|important)\b`),
}

// ExtractPriority matches a priority level adjacent to the word "priority"
// in either order.
func ExtractPriority(text string) (string, bool) {
	for _, re := range priorityPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.ToLower(m[1]), true
		}
	}
	return "", false
}

var reEmailAddress = regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)
var reRecipientName = regexp.MustCompile(`(?i)\b(?:email|message|mail|write)\s+(?:to\s+)?([a-z]+)\b`)

var recipientStopwords = map[string]bool{
	"me": true, "my": true, "the": true, "a": true, "an": true,
	"it": true, "him": true, "her": true, "them": true, "that": true,
	"this": true, "about": true, "for": true, "and": true,
}

// extractRecipients finds explicit addresses first, then a bare name right
// after the communication verb.
func extractRecipients(text string) (string, bool) {
	if addrs := reEmailAddress.FindAllString(text, -1); len(addrs) > 0 {
		return strings.Join(addrs, ", "), true
	}
	if m := reRecipientName.FindStringSubmatch(text); m != nil {
		name := strings.ToLower(m[1])
		if !recipientStopwords[name] {
			return name, true
		}
	}
	return "", false
}
