package config

const (
	defaultConfigPath              = "~/.config/leadflow/config.toml"
	defaultStateDir                = "~/.local/share/leadflow"
	defaultLogDir                  = "~/.local/share/leadflow/logs"
	defaultArtifactDir             = "~/.local/share/leadflow/artifacts"
	defaultInboxDir                = "~/.local/share/leadflow/inbox"
	defaultOutboxDir               = "~/.local/share/leadflow/outbox"
	defaultEnrichTimeoutSeconds    = 10
	defaultEnrichUserAgent         = "Mozilla/5.0 (compatible; leadflow/0.1)"
	defaultEnrichMaxBodyBytes      = 4 << 20
	defaultLLMBaseURL              = "https://api.groq.com/openai/v1/chat/completions"
	defaultLLMModel                = "llama-3.1-8b-instant"
	defaultLLMMaxTokens            = 600
	defaultLLMTemperature          = 0.3
	defaultLLMTimeoutSeconds       = 30
	defaultLLMTitle                = "leadflow"
	defaultConverterTimeoutSeconds = 30
	defaultSMTPPort                = 587
	defaultDispatchTimeoutSeconds  = 30
	defaultSignatureName           = "Our Team"
	defaultPollInterval            = 15
	defaultBatchSize               = 25
	defaultWorkers                 = 1
	defaultStageTimeoutSeconds     = 120
	defaultMaxAttempts             = 3
	defaultNotifyRequestTimeout    = 10
	defaultTelegramFlushSeconds    = 15
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// Dispatch modes.
const (
	DispatchModeOutbox = "outbox"
	DispatchModeSMTP   = "smtp"
)

var defaultKeywords = []string{
	"brochure", "catalogue", "catalog", "leaflet",
	"pamphlet", "prospectus", "flyer", "portfolio",
	"booklet", "information pack", "document", "presentation",
}

var defaultSystemSenderMarkers = []string{
	"google.com", "microsoft.com", "outlook.com", "apple.com",
	"noreply@", "no-reply@", "donotreply@", "do-not-reply@",
	"notification@", "notifications@", "alert@", "alerts@",
	"support@", "help@", "info@", "contact@",
	"github.com", "gitlab.com", "bitbucket.com",
	"linkedin.com", "facebook.com", "twitter.com", "instagram.com",
	"amazon.com", "aws.amazon.com",
	"mail.google.com", "mail.office.com",
}

var defaultSystemContentPhrases = []string{
	"do not reply", "don't reply", "donotreply", "no-reply",
	"account activation", "verify your account", "confirm your email",
	"reset your password", "password reset", "change password",
	"confirm your identity", "two-factor authentication", "2fa",
	"welcome to", "welcome aboard", "get started",
	"verify your phone", "confirm your number",
	"suspicious activity", "unusual activity",
	"subscription confirmation", "booking confirmation",
	"order confirmation", "purchase confirmation",
	"payment received", "payment confirmation",
	"login attempt", "new login", "login from",
	"unsubscribe", "manage subscriptions", "manage preferences",
}

var defaultPersonalMailProviders = []string{"gmail", "yahoo", "outlook", "hotmail"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			ArtifactDir: defaultArtifactDir,
		},
		Source: Source{
			InboxDir: defaultInboxDir,
		},
		Rules: Rules{
			Keywords:              cloneStrings(defaultKeywords),
			SystemSenderMarkers:   cloneStrings(defaultSystemSenderMarkers),
			SystemContentPhrases:  cloneStrings(defaultSystemContentPhrases),
			PersonalMailProviders: cloneStrings(defaultPersonalMailProviders),
		},
		Enrich: Enrich{
			TimeoutSeconds: defaultEnrichTimeoutSeconds,
			UserAgent:      defaultEnrichUserAgent,
			MaxBodyBytes:   defaultEnrichMaxBodyBytes,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			MaxTokens:      defaultLLMMaxTokens,
			Temperature:    defaultLLMTemperature,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Render: Render{
			ConverterTimeoutSeconds: defaultConverterTimeoutSeconds,
		},
		Dispatch: Dispatch{
			Mode:           DispatchModeOutbox,
			OutboxDir:      defaultOutboxDir,
			SMTPPort:       defaultSMTPPort,
			SignatureName:  defaultSignatureName,
			TimeoutSeconds: defaultDispatchTimeoutSeconds,
		},
		Workflow: Workflow{
			PollInterval:        defaultPollInterval,
			BatchSize:           defaultBatchSize,
			Workers:             defaultWorkers,
			StageTimeoutSeconds: defaultStageTimeoutSeconds,
			MaxAttempts:         defaultMaxAttempts,
		},
		Notifications: Notifications{
			TelegramFlushSeconds: defaultTelegramFlushSeconds,
			RequestTimeout:       defaultNotifyRequestTimeout,
			Dispatched:           true,
			Dead:                 true,
			Ambiguous:            true,
			Errors:               true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func cloneStrings(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}
