// Package validate qualifies inbound messages as leads. It is pure: no
// network, no clock, no ledger access.
package validate

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"leadflow/internal/config"
	"leadflow/internal/ledger"
	"leadflow/internal/stage"
)

// Rejection reasons recorded on the ledger.
const (
	ReasonSystemSender     = "system-sender"
	ReasonNoSenderIdentity = "no-sender-identity"
	ReasonNoKeyword        = "no-keyword"
	ReasonNoReference      = "no-reference"
)

var (
	senderPattern     = regexp.MustCompile(`^\s*"?([^"<>]*?)"?\s*<\s*([^<>\s]+@[^<>\s]+)\s*>\s*$`)
	urlPattern        = regexp.MustCompile(`https?://[^\s<>"']+`)
	bareDomainPattern = regexp.MustCompile(`\b(?:[a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}\b`)
)

// Rules holds the normalized qualification lists.
type Rules struct {
	Keywords              []string
	SystemSenderMarkers   []string
	SystemContentPhrases  []string
	PersonalMailProviders []string
}

// RulesFromConfig copies the validate section of cfg.
func RulesFromConfig(cfg config.Rules) Rules {
	return Rules{
		Keywords:              cfg.Keywords,
		SystemSenderMarkers:   cfg.SystemSenderMarkers,
		SystemContentPhrases:  cfg.SystemContentPhrases,
		PersonalMailProviders: cfg.PersonalMailProviders,
	}
}

// Result is the outcome of a single qualification check.
type Result struct {
	Reason         string
	SenderName     string
	SenderEmail    string
	Website        string
	MatchedKeyword string
}

// Qualified reports whether the message passed every rule.
func (r Result) Qualified() bool { return r.Reason == "" }

// Check applies the rules in order: system sender, sender identity,
// keyword, and website reference.
func (r Rules) Check(sender, subject, body string) Result {
	foldedSender := fold(sender)
	foldedContent := fold(subject + " " + body)

	if strings.TrimSpace(sender) == "" {
		return Result{Reason: ReasonSystemSender}
	}
	for _, marker := range r.SystemSenderMarkers {
		if marker != "" && strings.Contains(foldedSender, fold(marker)) {
			return Result{Reason: ReasonSystemSender}
		}
	}
	for _, phrase := range r.SystemContentPhrases {
		if phrase != "" && strings.Contains(foldedContent, fold(phrase)) {
			return Result{Reason: ReasonSystemSender}
		}
	}

	name, email, ok := parseSender(sender)
	if !ok {
		return Result{Reason: ReasonNoSenderIdentity}
	}

	var keyword string
	for _, candidate := range r.Keywords {
		if candidate != "" && strings.Contains(foldedContent, fold(candidate)) {
			keyword = candidate
			break
		}
	}
	if keyword == "" {
		return Result{Reason: ReasonNoKeyword, SenderName: name, SenderEmail: email}
	}

	website := firstWebsite(body)
	if website == "" {
		website = r.emailDomainFallback(email)
	}
	if website == "" {
		return Result{Reason: ReasonNoReference, SenderName: name, SenderEmail: email, MatchedKeyword: keyword}
	}

	return Result{
		SenderName:     name,
		SenderEmail:    email,
		Website:        website,
		MatchedKeyword: keyword,
	}
}

func (r Rules) emailDomainFallback(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	domain := strings.ToLower(email[at+1:])
	for _, provider := range r.PersonalMailProviders {
		if provider != "" && strings.Contains(domain, strings.ToLower(provider)) {
			return ""
		}
	}
	return domain
}

func parseSender(sender string) (string, string, bool) {
	m := senderPattern.FindStringSubmatch(sender)
	if m == nil {
		return "", "", false
	}
	name := strings.Join(strings.Fields(m[1]), " ")
	email := strings.TrimSpace(m[2])
	if name == "" || email == "" {
		return "", "", false
	}
	return name, email, true
}

func firstWebsite(body string) string {
	for _, raw := range urlPattern.FindAllString(body, -1) {
		raw = strings.TrimRight(raw, ".,;:!?)]")
		parsed, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if host := strings.ToLower(parsed.Hostname()); host != "" {
			return host
		}
	}
	stripped := urlPattern.ReplaceAllString(body, " ")
	return strings.ToLower(bareDomainPattern.FindString(stripped))
}

func fold(s string) string {
	// Casers carry state; one per call keeps Check safe for concurrent use.
	return cases.Fold().String(s)
}

// Executor is the validate stage.
type Executor struct {
	rules Rules
}

// NewExecutor constructs the validate stage for rules.
func NewExecutor(rules Rules) *Executor {
	return &Executor{rules: rules}
}

// Stage implements stage.Executor.
func (e *Executor) Stage() ledger.Stage { return ledger.StageValidate }

// Execute implements stage.Executor. It only ever advances or rejects.
func (e *Executor) Execute(_ context.Context, rec *ledger.Record) stage.Outcome {
	result := e.rules.Check(rec.Field("sender"), rec.Field("subject"), rec.Field("body"))
	if !result.Qualified() {
		return stage.Reject(result.Reason)
	}
	return stage.Advance(ledger.Payload{
		"sender_name":     result.SenderName,
		"sender_email":    result.SenderEmail,
		"website":         result.Website,
		"matched_keyword": result.MatchedKeyword,
	})
}
