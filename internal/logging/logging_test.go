package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"scr-lifecycle-policy/internal/logging"
)

func TestNew_defaults(t *testing.T) {
	logger, err := logging.New(logging.Options{})

	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, logger.GetLevel())
	require.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNew_json(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Level: "debug", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.WithField("tag_id", "t1").Debug("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "hello", line["msg"])
	require.Equal(t, "debug", line["level"])
	require.Equal(t, "t1", line["tag_id"])
	require.NotEmpty(t, line["time"])
}

func TestNew_textIncludesLevelAndTimestamp(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Output: &buf})
	require.NoError(t, err)

	logger.Info("3 tags are eligible for deletion.")

	require.Contains(t, buf.String(), "level=info")
	require.Contains(t, buf.String(), "time=")
	require.Contains(t, buf.String(), `msg="3 tags are eligible for deletion."`)
}

func TestNew_invalid(t *testing.T) {
	_, err := logging.New(logging.Options{Level: "loud"})
	require.ErrorContains(t, err, "invalid log level")

	_, err = logging.New(logging.Options{Format: "xml"})
	require.ErrorContains(t, err, "unsupported logging formatter")
}
