// Package inspect turns loaded plugins into printable and serializable
// summaries.
package inspect

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/mattjoyce/plugscan/internal/plugin"
)

// Entry is the structured JSON representation of one loaded plugin.
type Entry struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Root        string   `json:"root"`
	Source      string   `json:"source"`
	Descriptor  string   `json:"descriptor"`
	Digest      string   `json:"digest"`
	Bin         string   `json:"bin"`
	Args        []string `json:"args,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Priority    string   `json:"priority"`
	Help        string   `json:"help,omitempty"`
	Regex       string   `json:"regex,omitempty"`
	HasPattern  bool     `json:"has_pattern"`
	Isolate     bool     `json:"isolate"`
	History     bool     `json:"history"`

	// ShadowedBy is the source of an earlier (higher priority) plugin with
	// the same name. Informational only: both plugins are still loaded.
	ShadowedBy string `json:"shadowed_by,omitempty"`
}

// Shadows builds entries one at a time, remembering which names have been
// seen so later same-named plugins can be marked. Feed it plugins in
// pipeline order.
type Shadows struct {
	first map[string]string
}

// Entry summarizes lp.
func (s *Shadows) Entry(lp plugin.LoadedPlugin) Entry {
	if s.first == nil {
		s.first = make(map[string]string)
	}

	e := Entry{
		Root:       filepath.Dir(lp.Source),
		Source:     lp.Source,
		HasPattern: lp.Pattern != nil,
	}
	cfg := lp.Config
	if cfg == nil {
		return e
	}

	e.Name = cfg.Name
	e.Description = cfg.Description
	e.Descriptor = cfg.Descriptor
	e.Digest = cfg.Digest
	e.Priority = string(cfg.Query.Priority)
	e.Help = cfg.Query.Help
	e.Regex = cfg.Query.Regex
	e.Isolate = cfg.Query.Isolate
	e.History = cfg.History
	if cfg.Bin != nil {
		e.Bin = cfg.Bin.Path
		e.Args = cfg.Bin.Args
	}
	if cfg.Icon != nil {
		switch {
		case cfg.Icon.Name != "":
			e.Icon = "name:" + cfg.Icon.Name
		case cfg.Icon.Mime != "":
			e.Icon = "mime:" + cfg.Icon.Mime
		}
	}

	if prev, ok := s.first[cfg.Name]; ok {
		e.ShadowedBy = prev
	} else {
		s.first[cfg.Name] = lp.Source
	}
	return e
}

// Build summarizes plugins in order.
func Build(plugins []plugin.LoadedPlugin) []Entry {
	var s Shadows
	out := make([]Entry, 0, len(plugins))
	for _, lp := range plugins {
		out = append(out, s.Entry(lp))
	}
	return out
}

// RenderTable renders entries as a terminal table.
func RenderTable(entries []Entry) string {
	var buf bytes.Buffer
	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.AppendHeader(table.Row{"Name", "Priority", "Pattern", "Source", "Note"})
	for _, e := range entries {
		pattern := "-"
		if e.HasPattern {
			pattern = e.Regex
		}
		note := ""
		if e.ShadowedBy != "" {
			note = "same name as " + e.ShadowedBy
		}
		t.AppendRow(table.Row{e.Name, e.Priority, pattern, e.Source, note})
	}
	t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d plugin(s)", len(entries)), ""})
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
	return buf.String()
}

// RenderDetail renders a single entry as a key/value block.
func RenderDetail(e Entry) string {
	var out bytes.Buffer
	fmt.Fprintf(&out, "Name        : %s\n", e.Name)
	if e.Description != "" {
		fmt.Fprintf(&out, "Description : %s\n", e.Description)
	}
	fmt.Fprintf(&out, "Source      : %s\n", e.Source)
	fmt.Fprintf(&out, "Descriptor  : %s\n", e.Descriptor)
	fmt.Fprintf(&out, "Digest      : %s\n", e.Digest)
	fmt.Fprintf(&out, "Bin         : %s\n", e.Bin)
	for _, arg := range e.Args {
		fmt.Fprintf(&out, "  arg       : %s\n", arg)
	}
	if e.Icon != "" {
		fmt.Fprintf(&out, "Icon        : %s\n", e.Icon)
	}
	fmt.Fprintf(&out, "Priority    : %s\n", e.Priority)
	if e.Help != "" {
		fmt.Fprintf(&out, "Help        : %q\n", e.Help)
	}
	if e.Regex != "" {
		status := "compiled"
		if !e.HasPattern {
			status = "invalid, ignored"
		}
		fmt.Fprintf(&out, "Regex       : %s (%s)\n", e.Regex, status)
	}
	if e.ShadowedBy != "" {
		fmt.Fprintf(&out, "Note        : same name as %s (both loaded)\n", e.ShadowedBy)
	}
	return out.String()
}
