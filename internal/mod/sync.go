package mod

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"srtools/internal/models"
)

// Template sort orders.
const (
	SortAlpha = "alpha"
	SortSize  = "size"
)

// SyncOptions configures SyncTemplates.
type SyncOptions struct {
	// Sort is SortAlpha or SortSize.
	Sort string
	// Static templates are always added. With both text and css in use they
	// are written "text,css".
	Static []string
	// Limit is the number of users that must share a flair before it becomes a template.
	Limit    int
	Editable bool
	UseText  bool
	UseCSS   bool
}

type flairKey struct {
	text string
	css  string
}

func (k flairKey) empty() bool {
	return k.text == "" && k.css == ""
}

// SyncTemplates replaces the user flair templates of the subreddit with one
// template per flair shared by at least opts.Limit users, plus the static
// ones. It returns the templates that were added.
func (u *Utils) SyncTemplates(ctx context.Context, opts SyncOptions) ([]models.FlairTemplate, error) {
	if !opts.UseText && !opts.UseCSS {
		return nil, ErrNoFlairField
	}

	if opts.Sort != SortAlpha && opts.Sort != SortSize {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, opts.Sort)
	}

	counter := map[flairKey]int{}

	for _, static := range opts.Static {
		key, err := staticKey(static, opts)
		if err != nil {
			return nil, err
		}

		counter[key] = opts.Limit
	}

	flair, err := u.flair.Get(ctx)
	if err != nil {
		return nil, err
	}

	for _, f := range flair {
		var key flairKey
		if opts.UseText {
			key.text = f.Text
		}

		if opts.UseCSS {
			key.css = f.CSSClass
		}

		counter[key]++
	}

	type entry struct {
		key   flairKey
		count int
	}

	entries := make([]entry, 0, len(counter))
	for k, n := range counter {
		entries = append(entries, entry{key: k, count: n})
	}

	alpha := func(a, b entry) int {
		return cmp.Or(cmp.Compare(a.key.text, b.key.text), cmp.Compare(a.key.css, b.key.css))
	}

	if opts.Sort == SortAlpha {
		slices.SortFunc(entries, alpha)
	} else {
		slices.SortFunc(entries, func(a, b entry) int {
			return cmp.Or(cmp.Compare(b.count, a.count), alpha(a, b))
		})
	}

	u.logger.Info("clearing flair templates")

	if err := u.client.ClearFlairTemplates(ctx, u.subreddit); err != nil {
		return nil, fmt.Errorf("failed to clear flair templates: %w", err)
	}

	var added []models.FlairTemplate

	for _, e := range entries {
		if e.key.empty() || e.count < opts.Limit {
			continue
		}

		t := models.FlairTemplate{Text: e.key.text, CSSClass: e.key.css, Editable: opts.Editable}

		u.logger.Debug("adding template", "text", t.Text, "css", t.CSSClass)

		if err := u.client.AddFlairTemplate(ctx, u.subreddit, t); err != nil {
			return added, fmt.Errorf("failed to add flair template %q: %w", t.Text, err)
		}

		added = append(added, t)
	}

	return added, nil
}

func staticKey(static string, opts SyncOptions) (flairKey, error) {
	switch {
	case opts.UseText && opts.UseCSS:
		parts := strings.Split(static, ",")
		if len(parts) != 2 {
			return flairKey{}, fmt.Errorf("%w: %q", ErrStaticFormat, static)
		}

		return flairKey{text: strings.TrimSpace(parts[0]), css: strings.TrimSpace(parts[1])}, nil
	case opts.UseText:
		return flairKey{text: static}, nil
	default:
		return flairKey{css: static}, nil
	}
}
