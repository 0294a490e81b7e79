package cmd

import (
	"github.com/fatih/color"
	"github.com/pterm/pterm"
)

// Highlight colours for terminal output.
var (
	boldGreen  = color.New(color.FgGreen, color.Bold).SprintFunc()
	boldYellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	boldCyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
)

func info(format string, a ...any) {
	if !quiet {
		pterm.Info.Printfln(format, a...)
	}
}

func success(format string, a ...any) {
	if !quiet {
		pterm.Success.Printfln(format, a...)
	}
}

func warn(format string, a ...any) {
	pterm.Warning.Printfln(format, a...)
}

// progress wraps a pterm progress bar that is a no-op when quiet.
type progress struct {
	bar *pterm.ProgressbarPrinter
}

func startProgress(total int, title string) *progress {
	if quiet || total <= 1 {
		return &progress{}
	}
	bar, _ := pterm.DefaultProgressbar.
		WithTotal(total).
		WithTitle(title).
		WithShowCount(true).
		WithShowElapsedTime(true).
		WithRemoveWhenDone(true).
		Start()
	return &progress{bar: bar}
}

func (p *progress) title(s string) {
	if p.bar != nil {
		p.bar.UpdateTitle(s)
	}
}

func (p *progress) increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *progress) stop() {
	if p.bar != nil {
		_, _ = p.bar.Stop()
	}
}

// promptPassphrase reads a passphrase without echoing it.
var promptPassphrase = func(prompt string) (string, error) {
	return pterm.DefaultInteractiveTextInput.WithMask("*").Show(prompt)
}
