package command

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/modus/internal/mode"
)

const sampleCatalog = `{
  // phrases are matched in file order
  "voice_commands": {
    "modes": {
      "gaming time": {"action": "activate_mode", "params": {"mode": "gaming"}, "alternatives": ["let's play"]},
      "work mode": {"action": "activate_mode", "params": {"mode": "work"}},
    },
    "sound": {
      "volume up": {"action": "volume_up", "params": {"step": 5}},
      "louder": {"action": "volume_up"},
      "set volume": {"action": "set_volume", "params": {"smooth": true}},
      "quiet please": {"action": "set_volume", "params": {"level": 15}},
      "toggle mute": {"action": "toggle_mute"},
      "mute": {"action": "mute"},
      "bogus": {"action": "teleport"}
    },
    "system": {
      "open mail": {"action": "open_url", "params": {"url": "https://mail.example.com"}},
      "open terminal": {"action": "launch", "params": {"app": "kitty", "args": "--single-instance"}},
      "go to sleep": {"action": "system", "params": {"command": "shutdown"}},
      "how are you": {"action": "system", "params": {"command": "status"}},
      "reboot": {"action": "system", "params": {"command": "reboot"}}
    }
  }
}`

func parseSample(t *testing.T) *Catalog {
	t.Helper()
	catalog, warnings, err := Parse([]byte(sampleCatalog), mode.FormatJSON, "modus")
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0], `unknown action "teleport"`)
	require.Contains(t, warnings[1], "system params.command")
	return catalog
}

func TestMatchFirstPhraseInFileOrder(t *testing.T) {
	catalog := parseSample(t)
	require.Equal(t, 12, catalog.Len())

	match, ok := catalog.Match("Modus, gaming time please", nil)
	require.True(t, ok)
	require.Equal(t, IntentActivateMode, match.Intent)
	require.Equal(t, "gaming", match.Params.Mode)
	require.Equal(t, "modes", match.Category)

	match, ok = catalog.Match("let's play something", nil)
	require.True(t, ok)
	require.Equal(t, "gaming", match.Params.Mode)

	match, ok = catalog.Match("toggle mute", nil)
	require.True(t, ok)
	require.Equal(t, IntentToggleMute, match.Intent, "earlier phrase wins over the shorter later one")

	match, ok = catalog.Match("volume up", nil)
	require.True(t, ok)
	require.Equal(t, 5, match.Params.Step)

	match, ok = catalog.Match("open terminal", nil)
	require.True(t, ok)
	require.Equal(t, IntentLaunch, match.Intent)
	require.Equal(t, "kitty", match.Params.Target)
	require.Equal(t, []string{"--single-instance"}, match.Params.Args)

	match, ok = catalog.Match("go to sleep", nil)
	require.True(t, ok)
	require.Equal(t, SystemShutdown, match.Params.Command)
}

func TestMatchSetVolumeLevelFallsBackToSpokenNumber(t *testing.T) {
	catalog := parseSample(t)

	match, ok := catalog.Match("set volume to 35 percent", nil)
	require.True(t, ok)
	require.True(t, match.Params.HasLevel)
	require.Equal(t, 35, match.Params.Level)
	require.True(t, match.Params.Smooth)

	match, ok = catalog.Match("set volume to forty five", nil)
	require.True(t, ok)
	require.Equal(t, 45, match.Params.Level)

	match, ok = catalog.Match("set volume to 400", nil)
	require.True(t, ok)
	require.Equal(t, 100, match.Params.Level)

	match, ok = catalog.Match("set volume", nil)
	require.True(t, ok)
	require.False(t, match.Params.HasLevel)

	match, ok = catalog.Match("quiet please 80", nil)
	require.True(t, ok)
	require.Equal(t, 15, match.Params.Level, "configured level wins over spoken number")
}

func TestMatchFallsBackToModeNames(t *testing.T) {
	catalog := New("modus")
	names := []string{"Focus", "movie night"}

	match, ok := catalog.Match("modus activate focus", names)
	require.True(t, ok)
	require.Equal(t, IntentActivateMode, match.Intent)
	require.Equal(t, "Focus", match.Params.Mode)

	match, ok = catalog.Match("movie night mode", names)
	require.True(t, ok)
	require.Equal(t, "movie night", match.Params.Mode)

	match, ok = catalog.Match("switch to movie night mode", names)
	require.True(t, ok)
	require.Equal(t, "movie night", match.Params.Mode)

	_, ok = catalog.Match("activate unknown", names)
	require.False(t, ok)
	_, ok = catalog.Match("modus", names)
	require.False(t, ok)
}

func TestStripWakeWord(t *testing.T) {
	catalog := New("Hey Modus")

	text, found := catalog.StripWakeWord("  HEY modus,  Volume UP ")
	require.True(t, found)
	require.Equal(t, "volume up", text)

	text, found = catalog.StripWakeWord("volume up")
	require.False(t, found)
	require.Equal(t, "volume up", text)

	text, found = New("").StripWakeWord("Volume Up")
	require.True(t, found)
	require.Equal(t, "volume up", text)
}

func TestParseYAMLKeepsOrder(t *testing.T) {
	input := `
voice_commands:
  sound:
    quieter:
      action: volume_down
      params: {step: 20}
    quiet:
      action: set_volume
      params: {level: 10}
  apps:
    browser:
      action: launch
      params:
        target: firefox
        args: [--private-window]
`
	catalog, warnings, err := Parse([]byte(input), mode.FormatYAML, "")
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, 3, catalog.Len())

	match, ok := catalog.Match("a bit quieter", nil)
	require.True(t, ok)
	require.Equal(t, IntentVolumeDown, match.Intent)
	require.Equal(t, 20, match.Params.Step)

	match, ok = catalog.Match("open the browser", nil)
	require.True(t, ok)
	require.Equal(t, []string{"--private-window"}, match.Params.Args)
}

func TestParseRejectsMalformedDocuments(t *testing.T) {
	_, _, err := Parse([]byte(`{"commands": {}}`), mode.FormatJSON, "")
	require.ErrorContains(t, err, "missing voice_commands")

	_, _, err = Parse([]byte(`{"voice_commands": []}`), mode.FormatJSON, "")
	require.Error(t, err)

	_, _, err = Parse([]byte("voice_commands: [a]\n"), mode.FormatYAML, "")
	require.ErrorContains(t, err, "must be a mapping")
}

func TestLoadMissingFileKeepsBuiltIns(t *testing.T) {
	catalog, warnings := Load(filepath.Join(t.TempDir(), "commands.json"), "modus", nil)
	require.Len(t, warnings, 1)
	require.Zero(t, catalog.Len())

	match, ok := catalog.Match("modus gaming mode", []string{"gaming"})
	require.True(t, ok)
	require.Equal(t, "gaming", match.Params.Mode)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	catalog, warnings := Load(path, "modus", nil)
	require.Len(t, warnings, 2)
	require.Equal(t, 12, catalog.Len())
	require.Equal(t, "modus", catalog.WakeWord())
}

func TestFirstNumber(t *testing.T) {
	tests := []struct {
		text string
		want int
		ok   bool
	}{
		{text: "set it to 30%", want: 30, ok: true},
		{text: "twenty", want: 20, ok: true},
		{text: "ninety-nine please", want: 99, ok: true},
		{text: "one hundred", want: 100, ok: true},
		{text: "a hundred", want: 100, ok: true},
		{text: "seven", want: 7, ok: true},
		{text: "fifteen and 20", want: 15, ok: true},
		{text: "volume forty five.", want: 45, ok: true},
		{text: "sixty two!", want: 62, ok: true},
		{text: "one hundred.", want: 100, ok: true},
		{text: "no numbers here", ok: false},
	}
	for _, tc := range tests {
		got, ok := firstNumber(tc.text)
		require.Equal(t, tc.ok, ok, tc.text)
		require.Equal(t, tc.want, got, tc.text)
	}
}
