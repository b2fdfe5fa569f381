// Package report renders descriptors as styled terminal text.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/nzoschke/audiodesc/pkg/audio"
	"github.com/nzoschke/audiodesc/pkg/descriptor"
)

var (
	green = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))
	red   = lipgloss.NewStyle().Foreground(lipgloss.Color("#E95420"))
	gray  = lipgloss.NewStyle().Foreground(lipgloss.Color("#9A9EA0"))
	cyan  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00BCD4"))
	bold  = lipgloss.NewStyle().Bold(true)

	card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#00BCD4")).
		Padding(0, 1)
)

// Render returns a bordered summary card for one file.
func Render(name string, d *descriptor.AudioDescriptor) string {
	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", gray.Render(fmt.Sprintf("%-15s", label)), value)
	}

	mfcc := make([]string, len(d.MFCCMeans))
	for i, v := range d.MFCCMeans {
		mfcc[i] = fmt.Sprintf("%.2f", v)
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		bold.Render(name),
		"",
		row("Tempo", cyan.Render(fmt.Sprintf("%.1f BPM", d.BPM))+gray.Render(" ("+d.TimeSignature+")")),
		row("Key", cyan.Render(d.KeyFull)),
		row("Duration", fmt.Sprintf("%s (%.1fs @ %d Hz)", d.Duration, d.DurationSec, d.SampleRate)),
		"",
		row("Energy", d.EnergyLevel),
		row("Dynamic range", d.DynamicRange),
		row("Brightness", fmt.Sprintf("%s %s", d.Brightness, gray.Render(fmt.Sprintf("%.0f Hz", d.SpectralCentroidHz)))),
		row("Texture", fmt.Sprintf("%s %s", d.Texture, gray.Render(fmt.Sprintf("h/p %.3f", d.HPRatio)))),
		row("Rhythm", fmt.Sprintf("%s %s", d.RhythmDensity, gray.Render(fmt.Sprintf("onset %.4f", d.OnsetMean)))),
		"",
		row("Mood", green.Render(strings.Join(d.MoodTags, ", "))),
		row("Genre", green.Render(strings.Join(d.GenreHints, ", "))),
		row("Timbre", gray.Render(strings.Join(mfcc, " "))),
	)
	return card.Render(body)
}

// RenderError returns a one-line failure message.
func RenderError(name string, err error) string {
	return fmt.Sprintf("%s %s %s", red.Render("✗"), bold.Render(name), gray.Render(err.Error()))
}

// RenderTools lists external decoders with their availability.
func RenderTools(tools []audio.Tool) string {
	var b strings.Builder
	b.WriteString(bold.Render("Optional Dependencies:") + "\n\n")
	for _, t := range tools {
		status := gray.Render("○")
		if t.Available() {
			status = green.Render("✓")
		}
		fmt.Fprintf(&b, "  %s %s\n", status, bold.Render(t.Name))
		fmt.Fprintf(&b, "    %s\n", gray.Render(t.Description))
		if t.Available() {
			fmt.Fprintf(&b, "    Path: %s\n", t.Path)
		}
		b.WriteString("\n")
	}
	b.WriteString(gray.Render("MP3 and WAV decode without external programs."))
	return b.String()
}
