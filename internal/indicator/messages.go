package indicator

import (
	"fmt"
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	activatedFormat string
	partialFormat   string
	failedFormat    string
	rejectedFormat  string
	errorText       string
}

func (m messages) activated(mode string) string {
	return fmt.Sprintf(m.activatedFormat, mode)
}

func (m messages) partial(mode string, failed int, total int) string {
	return fmt.Sprintf(m.partialFormat, mode, failed, total)
}

func (m messages) failed(mode string) string {
	return fmt.Sprintf(m.failedFormat, mode)
}

func (m messages) rejected(mode string, reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Sprintf(m.failedFormat, mode)
	}
	return fmt.Sprintf(m.rejectedFormat, mode, reason)
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			activatedFormat: "Mode %s activated",
			partialFormat:   "Mode %s: %d of %d actions failed",
			failedFormat:    "Mode %s failed",
			rejectedFormat:  "Mode %s not activated: %s",
			errorText:       "Command failed",
		}
	}
}
