// Package secrets keeps sensitive stack outputs encrypted in Pulumi state.
// Values are encrypted with the stack's secrets provider (PULUMI_CONFIG_PASSPHRASE
// for the passphrase provider).
//
// Usage:
//
//	exporter := secrets.NewExporter(ctx, "editorPassword")
//	exporter.Export("editorUrl", url)           // plain
//	exporter.Export("editorPassword", password) // encrypted
package secrets

import (
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
)

// Mask is printed in place of a secret value
const Mask = "[secret]"

// Export exports a value as an encrypted secret.
// This is equivalent to ctx.Export(name, pulumi.ToSecret(value)).
func Export(ctx *pulumi.Context, name string, value pulumi.Input) {
	ctx.Export(name, pulumi.ToSecret(value))
}

// Exporter exports stack outputs, encrypting the ones registered as sensitive.
type Exporter struct {
	ctx       *pulumi.Context
	sensitive map[string]bool
}

// NewExporter creates an Exporter that encrypts the named outputs.
func NewExporter(ctx *pulumi.Context, sensitive ...string) *Exporter {
	e := &Exporter{ctx: ctx, sensitive: make(map[string]bool, len(sensitive))}
	for _, name := range sensitive {
		e.sensitive[name] = true
	}
	return e
}

// Export exports value, wrapping it with pulumi.ToSecret when name is sensitive.
func (e *Exporter) Export(name string, value pulumi.Input) {
	if e.IsSensitive(name) {
		Export(e.ctx, name, value)
		return
	}
	e.ctx.Export(name, value)
}

// IsSensitive reports whether name is exported encrypted.
func (e *Exporter) IsSensitive(name string) bool {
	return e.sensitive[name]
}

// Display returns the printable form of an output value
func Display(value interface{}, secret, reveal bool) interface{} {
	if secret && !reveal {
		return Mask
	}
	return value
}
