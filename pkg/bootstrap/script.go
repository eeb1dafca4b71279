// Package bootstrap renders the first-boot commands that install and start
// code-server on the instance.
//
// The sequence runs once, as root, from EC2 user data. It is not checked for
// success: a failing line leaves the instance partially configured.
package bootstrap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chalkan3/codeserver-stack/pkg/config"
	"gopkg.in/yaml.v3"
)

const (
	libDir    = "~/.local/lib"
	binDir    = "~/.local/bin"
	configDir = "~/.config/code-server"

	// ConfigPath is where code-server reads its settings from
	ConfigPath = configDir + "/config.yaml"

	releaseURLFormat = "https://github.com/cdr/code-server/releases/download/v%[1]s/code-server-%[1]s-linux-%[2]s.tar.gz"
)

// Script is an ordered list of shell commands
type Script struct {
	editor   config.EditorConfig
	commands []string
}

// New builds the bootstrap script for the given editor settings
func New(editor config.EditorConfig) *Script {
	s := &Script{editor: editor}

	release := fmt.Sprintf("code-server-%s-linux-%s", editor.Version, editor.Arch)
	installDir := fmt.Sprintf("%s/code-server-%s", libDir, editor.Version)

	s.add(fmt.Sprintf("mkdir -p %s %s %s", libDir, binDir, configDir))
	s.add(fmt.Sprintf("curl -fL %s | tar -C %s -xz", ReleaseURL(editor), libDir))
	s.add(fmt.Sprintf("mv %s/%s %s", libDir, release, installDir))
	s.add(fmt.Sprintf("ln -s %s/bin/code-server %s/code-server", installDir, binDir))

	for i, line := range s.ConfigLines() {
		redirect := ">>"
		if i == 0 {
			redirect = ">"
		}
		s.add(fmt.Sprintf("echo \"%s\" %s %s", line, redirect, ConfigPath))
	}

	s.add(binDir + "/code-server &")

	return s
}

// ReleaseURL returns the download location of the pinned release archive
func ReleaseURL(editor config.EditorConfig) string {
	return fmt.Sprintf(releaseURLFormat, editor.Version, editor.Arch)
}

func (s *Script) add(cmd string) {
	s.commands = append(s.commands, cmd)
}

// Commands returns a copy of the command sequence
func (s *Script) Commands() []string {
	out := make([]string, len(s.commands))
	copy(out, s.commands)
	return out
}

// ConfigLines returns the lines of config.yaml in the order they are written
func (s *Script) ConfigLines() []string {
	lines := []string{
		"bind-addr: " + BindAddress(s.editor),
		"auth: " + s.editor.Auth,
	}
	if s.editor.PasswordAuth() {
		lines = append(lines, "password: "+yamlString(s.editor.Password))
	}
	return append(lines, "cert: "+strconv.FormatBool(s.editor.Cert))
}

// ConfigFile returns the content of config.yaml as written by the script
func (s *Script) ConfigFile() string {
	return strings.Join(s.ConfigLines(), "\n") + "\n"
}

// yamlString returns value as a YAML scalar that reads back as the same
// string. Plain values are kept as is; anything YAML would reinterpret
// (comments, tags, booleans, numbers) is single-quoted.
func yamlString(value string) string {
	var parsed map[string]interface{}
	if err := yaml.Unmarshal([]byte("v: "+value), &parsed); err == nil {
		if str, ok := parsed["v"].(string); ok && str == value {
			return value
		}
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// BindAddress is the host:port code-server listens on
func BindAddress(editor config.EditorConfig) string {
	return fmt.Sprintf("%s:%d", editor.BindHost, editor.Port)
}

// Render returns the user data document
func (s *Script) Render() string {
	return "#!/bin/bash\n" + strings.Join(s.commands, "\n") + "\n"
}
