package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/treykane/gostly/internal/appconfig"
	"github.com/treykane/gostly/internal/security"
)

// newLogger builds a text logger whose string values pass through
// security.RedactMessage.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindString {
				a.Value = slog.StringValue(security.RedactMessage(a.Value.String()))
			}
			return a
		},
	}))
}

// newFileLogger appends to gostly.log in the config dir.
func newFileLogger(level slog.Level) (*slog.Logger, func(), error) {
	path, err := appconfig.LogFilePath()
	if err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return newLogger(f, level), func() { _ = f.Close() }, nil
}
