// Package models defines client-side data models: the plaintext profile
// that is synced and shared, and the local sync bookkeeping.
package models

import (
	"slices"
	"time"
)

// Entry is one record in a profile. Category refers to Category.Name.
type Entry struct {
	ID          string     `json:"id"`
	Category    string     `json:"category"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        time.Time  `json:"date"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	Attachments []string   `json:"attachments,omitempty"`
	Visibility  []string   `json:"visibility,omitempty"`
}

type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Icon        string `json:"icon,omitempty"`
	Color       string `json:"color"`
	Order       int    `json:"order"`
	IsVisible   bool   `json:"isVisible"`
	IsCustom    bool   `json:"isCustom"`
	IsQuickInfo bool   `json:"isQuickInfo,omitempty"`
}

type QuickInfoPanel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Value       string `json:"value"`
	Order       int    `json:"order"`
	IsVisible   bool   `json:"isVisible"`
	IsCustom    bool   `json:"isCustom"`
}

// Profile is the whole document a sync group carries. It is always pushed
// and pulled in full.
type Profile struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	PreferredName   string           `json:"preferredName,omitempty"`
	DateOfBirth     string           `json:"dateOfBirth,omitempty"`
	Photo           string           `json:"photo,omitempty"`
	Entries         []Entry          `json:"entries"`
	Categories      []Category       `json:"categories"`
	QuickInfoPanels []QuickInfoPanel `json:"quickInfoPanels"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	Preferences     map[string]any   `json:"preferences,omitempty"`
}

// DisplayName prefers the preferred name.
func (p *Profile) DisplayName() string {
	if p.PreferredName != "" {
		return p.PreferredName
	}
	return p.Name
}

// FilterForShare returns a copy of p holding only entries in categories,
// without quick info panels, and without the photo unless includePhoto.
// Category definitions not selected are dropped as well.
func (p *Profile) FilterForShare(categories []string, includePhoto bool) *Profile {
	out := *p
	out.Entries = make([]Entry, 0, len(p.Entries))
	for _, e := range p.Entries {
		if slices.Contains(categories, e.Category) {
			out.Entries = append(out.Entries, e)
		}
	}
	out.Categories = make([]Category, 0, len(categories))
	for _, c := range p.Categories {
		if slices.Contains(categories, c.Name) {
			out.Categories = append(out.Categories, c)
		}
	}
	out.QuickInfoPanels = []QuickInfoPanel{}
	if !includePhoto {
		out.Photo = ""
	}
	out.Preferences = nil
	return &out
}
