package bootstrap

import (
	"strings"
	"testing"

	"github.com/chalkan3/codeserver-stack/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNew_DefaultSequence(t *testing.T) {
	script := New(config.Default().Editor)

	expected := []string{
		"mkdir -p ~/.local/lib ~/.local/bin ~/.config/code-server",
		"curl -fL https://github.com/cdr/code-server/releases/download/v3.5.0/code-server-3.5.0-linux-amd64.tar.gz | tar -C ~/.local/lib -xz",
		"mv ~/.local/lib/code-server-3.5.0-linux-amd64 ~/.local/lib/code-server-3.5.0",
		"ln -s ~/.local/lib/code-server-3.5.0/bin/code-server ~/.local/bin/code-server",
		`echo "bind-addr: 0.0.0.0:8080" > ~/.config/code-server/config.yaml`,
		`echo "auth: password" >> ~/.config/code-server/config.yaml`,
		`echo "password: AWSServerless!" >> ~/.config/code-server/config.yaml`,
		`echo "cert: false" >> ~/.config/code-server/config.yaml`,
		"~/.local/bin/code-server &",
	}

	assert.Equal(t, expected, script.Commands())
}

func TestConfigFile_FourLines(t *testing.T) {
	script := New(config.Default().Editor)

	assert.Equal(t, []string{
		"bind-addr: 0.0.0.0:8080",
		"auth: password",
		"password: AWSServerless!",
		"cert: false",
	}, script.ConfigLines())
	assert.Equal(t, "bind-addr: 0.0.0.0:8080\nauth: password\npassword: AWSServerless!\ncert: false\n", script.ConfigFile())
}

func TestConfigFile_AuthNone(t *testing.T) {
	editor := config.Default().Editor
	editor.Auth = config.AuthNone
	editor.Password = ""

	script := New(editor)
	lines := script.ConfigLines()

	require.Len(t, lines, 3)
	assert.Equal(t, "auth: none", lines[1])
	for _, cmd := range script.Commands() {
		assert.NotContains(t, cmd, "password:")
	}
}

func TestConfigFile_PasswordRoundTrip(t *testing.T) {
	passwords := []string{
		"AWSServerless!",
		"hunter2 #1",
		"!secret",
		"true",
		"0123",
		"it's",
		"- dash",
		"key: value",
		"&anchor",
		"*alias",
		"null",
		"1e3",
		" padded ",
		"{braces}",
		"[list]",
		"%percent",
		"@at",
	}

	for _, password := range passwords {
		t.Run(password, func(t *testing.T) {
			cfg := config.Default()
			cfg.Editor.Password = password
			require.NoError(t, config.Validate(cfg))

			var parsed map[string]interface{}
			require.NoError(t, yaml.Unmarshal([]byte(New(cfg.Editor).ConfigFile()), &parsed))

			assert.Equal(t, password, parsed["password"])
			assert.Equal(t, "0.0.0.0:8080", parsed["bind-addr"])
			assert.Equal(t, false, parsed["cert"])
		})
	}
}

func TestConfigLines_QuotesAmbiguousPassword(t *testing.T) {
	editor := config.Default().Editor
	editor.Password = "it's true"
	assert.Contains(t, New(editor).ConfigLines(), "password: it's true")

	editor.Password = "true"
	script := New(editor)
	assert.Contains(t, script.ConfigLines(), "password: 'true'")
	assert.Contains(t, script.Commands(), `echo "password: 'true'" >> ~/.config/code-server/config.yaml`)

	editor.Password = "'quoted"
	assert.Contains(t, New(editor).ConfigLines(), "password: '''quoted'")
}

func TestNew_CustomRelease(t *testing.T) {
	editor := config.Default().Editor
	editor.Version = "4.8.3"
	editor.Arch = "arm64"
	editor.Port = 9000
	editor.Cert = true

	script := New(editor)
	cmds := script.Commands()

	assert.Contains(t, cmds[1], "v4.8.3/code-server-4.8.3-linux-arm64.tar.gz")
	assert.Equal(t, "mv ~/.local/lib/code-server-4.8.3-linux-arm64 ~/.local/lib/code-server-4.8.3", cmds[2])
	assert.Contains(t, script.ConfigFile(), "bind-addr: 0.0.0.0:9000")
	assert.Contains(t, script.ConfigFile(), "cert: true")
}

func TestCommands_ReturnsCopy(t *testing.T) {
	script := New(config.Default().Editor)
	cmds := script.Commands()
	cmds[0] = "rm -rf /"

	assert.NotEqual(t, "rm -rf /", script.Commands()[0])
}

func TestCommands_EndWithBackgroundLaunch(t *testing.T) {
	editors := []config.EditorConfig{config.Default().Editor}
	alt := config.Default().Editor
	alt.Auth = config.AuthNone
	alt.Password = ""
	editors = append(editors, alt)

	for _, editor := range editors {
		cmds := New(editor).Commands()
		last := cmds[len(cmds)-1]

		assert.True(t, strings.HasSuffix(last, " &"), "editor must be started in the background")
		assert.Contains(t, last, "code-server")

		for _, cmd := range cmds[:len(cmds)-1] {
			assert.NotContains(t, cmd, "sleep infinity")
			assert.NotEqual(t, "wait", strings.TrimSpace(cmd))
			fields := strings.Fields(cmd)
			require.NotEmpty(t, fields)
			assert.NotEqual(t, "~/.local/bin/code-server", fields[0],
				"no editor launch before the last command: %q", cmd)
		}
	}
}

func TestRender(t *testing.T) {
	script := New(config.Default().Editor)
	rendered := script.Render()

	assert.True(t, strings.HasPrefix(rendered, "#!/bin/bash\n"))
	assert.True(t, strings.HasSuffix(rendered, "~/.local/bin/code-server &\n"))
	assert.Equal(t, len(script.Commands())+1, strings.Count(rendered, "\n"))
}

func TestRender_Deterministic(t *testing.T) {
	a := New(config.Default().Editor).Render()
	b := New(config.Default().Editor).Render()
	assert.Equal(t, a, b)
}

func TestBindAddressAndReleaseURL(t *testing.T) {
	editor := config.Default().Editor

	assert.Equal(t, "0.0.0.0:8080", BindAddress(editor))
	assert.Equal(t, "https://github.com/cdr/code-server/releases/download/v3.5.0/code-server-3.5.0-linux-amd64.tar.gz", ReleaseURL(editor))
}
