package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/rubyindex/internal/entry"
	"github.com/skelly-dev/rubyindex/internal/fileutil"
	"github.com/skelly-dev/rubyindex/internal/index"
	"github.com/skelly-dev/rubyindex/internal/search"
	"github.com/skelly-dev/rubyindex/internal/workspace"
)

func RunLookup(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	fuzzy, err := OptionalBoolFlag(cmd, "fuzzy", false)
	if err != nil {
		return err
	}
	limit, err := OptionalIntFlag(cmd, "limit", 10)
	if err != nil {
		return err
	}
	ws, err := loadIndex(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	root := ws.Config().Root
	found := ws.Lookup(args[0])
	if len(found) == 0 && fuzzy {
		found = fuzzyLookup(ws, args[0], limit)
	}
	records := EntryRecordsFrom(found, root)
	return printEntries(cmd, asJSON, fmt.Sprintf("entries for %q", args[0]), map[string]any{
		"query":   args[0],
		"entries": records,
	}, records)
}

func RunResolve(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	nesting, err := ParseNesting(cmd)
	if err != nil {
		return err
	}
	ws, err := loadIndex(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	found, err := ws.Resolve(args[0], nesting)
	if err != nil {
		if !index.IsNonExistingNamespace(err) {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	records := EntryRecordsFrom(found, ws.Config().Root)
	return printEntries(cmd, asJSON, fmt.Sprintf("resolution of %q in [%s]", args[0], strings.Join(nesting, ", ")), map[string]any{
		"query":   args[0],
		"nesting": nesting,
		"entries": records,
	}, records)
}

func RunMethod(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	implicit, err := OptionalBoolFlag(cmd, "implicit", false)
	if err != nil {
		return err
	}
	ws, err := loadIndex(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	name, owner := args[0], args[1]
	records := EntryRecordsFrom(ws.ResolveMethodCall(name, owner, !implicit), ws.Config().Root)
	return printEntries(cmd, asJSON, fmt.Sprintf("method %s#%s", owner, name), map[string]any{
		"name":     name,
		"owner":    owner,
		"implicit": implicit,
		"entries":  records,
	}, records)
}

func RunIvar(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	complete, err := OptionalBoolFlag(cmd, "complete", false)
	if err != nil {
		return err
	}
	ws, err := loadIndex(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	name, owner := args[0], args[1]
	if !strings.HasPrefix(name, "@") {
		name = "@" + name
	}
	root := ws.Config().Root
	if complete {
		records := firstOfEach(ws.InstanceVariableCompletions(name, owner), root)
		return printEntries(cmd, asJSON, fmt.Sprintf("instance variables of %s matching %q", owner, name), map[string]any{
			"prefix":  name,
			"owner":   owner,
			"entries": records,
		}, records)
	}
	records := EntryRecordsFrom(ws.ResolveInstanceVariable(name, owner), root)
	return printEntries(cmd, asJSON, fmt.Sprintf("instance variable %s on %s", name, owner), map[string]any{
		"name":    name,
		"owner":   owner,
		"entries": records,
	}, records)
}

func RunComplete(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	nesting, err := ParseNesting(cmd)
	if err != nil {
		return err
	}
	limit, err := OptionalIntFlag(cmd, "limit", 50)
	if err != nil {
		return err
	}
	ws, err := loadIndex(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	records := firstOfEach(ws.PrefixSearch(args[0], nesting), ws.Config().Root)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return printEntries(cmd, asJSON, fmt.Sprintf("completions for %q", args[0]), map[string]any{
		"prefix":  args[0],
		"nesting": nesting,
		"entries": records,
	}, records)
}

func RunAncestors(cmd *cobra.Command, args []string) error {
	asJSON, err := OptionalBoolFlag(cmd, "json", false)
	if err != nil {
		return err
	}
	ws, err := loadIndex(cmd)
	if err != nil {
		return err
	}
	defer ws.Close()

	ancestors, err := ws.LinearizedAncestorsOf(args[0])
	if err != nil {
		return err
	}
	if asJSON {
		return fileutil.PrintJSON(cmd.OutOrStdout(), map[string]any{
			"namespace": args[0],
			"ancestors": ancestors,
		})
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ancestors of %s (%d)\n", args[0], len(ancestors))
	for _, name := range ancestors {
		fmt.Fprintf(out, "- %s\n", name)
	}
	return nil
}

// fuzzyLookup ranks every indexed name against query and returns the entries of the best matches.
func fuzzyLookup(ws *workspace.Workspace, query string, limit int) []*entry.Entry {
	var found []*entry.Entry
	_ = ws.View(func(idx *index.Index) error {
		for _, result := range search.Build(idx).Search(query, limit) {
			found = append(found, idx.Lookup(result.Name)...)
		}
		return nil
	})
	return found
}

// firstOfEach keeps one representative entry per bucket, as completion lists do.
func firstOfEach(buckets [][]*entry.Entry, root string) []EntryRecord {
	records := make([]EntryRecord, 0, len(buckets))
	for _, bucket := range buckets {
		if len(bucket) > 0 {
			records = append(records, EntryRecordFrom(bucket[0], root))
		}
	}
	return records
}

func printEntries(cmd *cobra.Command, asJSON bool, title string, payload map[string]any, records []EntryRecord) error {
	if asJSON {
		return fileutil.PrintJSON(cmd.OutOrStdout(), payload)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%d)\n", title, len(records))
	if len(records) == 0 {
		fmt.Fprintln(out, "no entries found")
		return nil
	}
	printEntryRecords(out, records)
	return nil
}
