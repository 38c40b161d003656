// Package site describes the target storefront: its URLs and every selector
// list and fallback text the harvesting flow uses.
//
// The storefront's markup drifts often, so selectors live in data rather
// than code. Default returns the built-in profile; FromFile loads an edited
// copy.
package site

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/promoscout/pkg/locator"
	"github.com/jmylchreest/promoscout/pkg/page"
)

// Profile is the complete description of one storefront.
type Profile struct {
	Name         string     `json:"name" yaml:"name" validate:"required"`
	BaseURL      string     `json:"base_url" yaml:"base_url" validate:"required,url"`
	CampaignPath string     `json:"campaign_path" yaml:"campaign_path" validate:"required,startswith=/"`
	Auth         Auth       `json:"auth" yaml:"auth"`
	Navigation   Navigation `json:"navigation" yaml:"navigation"`
	Extraction   Extraction `json:"extraction" yaml:"extraction"`
}

// Auth holds the login form targets.
type Auth struct {
	Trigger           Cascade `json:"trigger" yaml:"trigger"`
	Identifier        Cascade `json:"identifier" yaml:"identifier"`
	IdentifierGeneric string  `json:"identifier_generic" yaml:"identifier_generic" validate:"required"`
	Password          Cascade `json:"password" yaml:"password"`
	PasswordGeneric   string  `json:"password_generic" yaml:"password_generic" validate:"required"`
	Submit            Cascade `json:"submit" yaml:"submit"`
}

// Navigation holds the targets that lead to the campaign listing.
type Navigation struct {
	CampaignLink Cascade `json:"campaign_link" yaml:"campaign_link"`
	MenuTrigger  string  `json:"menu_trigger" yaml:"menu_trigger" validate:"required"`
	MenuItem     string  `json:"menu_item" yaml:"menu_item" validate:"required"`
}

// Extraction holds the grid and per-item field selectors. Field selectors
// are relative to a grid item.
type Extraction struct {
	Grid          []string `json:"grid" yaml:"grid" validate:"required,min=1,dive,required"`
	GridFallback  string   `json:"grid_fallback" yaml:"grid_fallback" validate:"required"`
	Title         []string `json:"title" yaml:"title" validate:"required,min=1,dive,required"`
	OriginalPrice []string `json:"original_price" yaml:"original_price" validate:"required,min=1,dive,required"`
	ReducedPrice  []string `json:"reduced_price" yaml:"reduced_price" validate:"required,min=1,dive,required"`
	Availability  []string `json:"availability" yaml:"availability" validate:"required,min=1,dive,required"`
}

// Cascade is an ordered selector list with optional fallback text.
type Cascade struct {
	Selectors []string `json:"selectors" yaml:"selectors" validate:"required,min=1,dive,required"`
	Fallback  string   `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Candidates converts the cascade for the locator.
func (c Cascade) Candidates(name string) locator.Candidates {
	return locator.Candidates{
		Name:         name,
		Selectors:    page.ParseAll(c.Selectors),
		FallbackText: c.Fallback,
	}
}

// CampaignURL returns the absolute address of the campaign listing.
func (p Profile) CampaignURL() string {
	return strings.TrimSuffix(p.BaseURL, "/") + p.CampaignPath
}

// Validate checks required fields and that every selector compiles.
func (p Profile) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	if u, err := url.Parse(p.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid profile: base_url must be an http(s) url: %q", p.BaseURL)
	}

	var errs []error
	check := func(field, expr string) {
		if err := compile(expr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}
	checkAll := func(field string, exprs []string) {
		for i, e := range exprs {
			check(fmt.Sprintf("%s[%d]", field, i), e)
		}
	}

	checkAll("auth.trigger", p.Auth.Trigger.Selectors)
	checkAll("auth.identifier", p.Auth.Identifier.Selectors)
	check("auth.identifier_generic", p.Auth.IdentifierGeneric)
	checkAll("auth.password", p.Auth.Password.Selectors)
	check("auth.password_generic", p.Auth.PasswordGeneric)
	checkAll("auth.submit", p.Auth.Submit.Selectors)
	checkAll("navigation.campaign_link", p.Navigation.CampaignLink.Selectors)
	check("navigation.menu_trigger", p.Navigation.MenuTrigger)
	check("navigation.menu_item", p.Navigation.MenuItem)
	checkAll("extraction.grid", p.Extraction.Grid)
	check("extraction.grid_fallback", p.Extraction.GridFallback)
	checkAll("extraction.title", p.Extraction.Title)
	checkAll("extraction.original_price", p.Extraction.OriginalPrice)
	checkAll("extraction.reduced_price", p.Extraction.ReducedPrice)
	checkAll("extraction.availability", p.Extraction.Availability)

	if len(errs) > 0 {
		return fmt.Errorf("invalid profile selectors: %w", errors.Join(errs...))
	}
	return nil
}

func compile(expr string) error {
	sel := page.Parse(expr)
	switch sel.Kind {
	case page.KindXPath:
		if _, err := xpath.Compile(sel.Expr); err != nil {
			return fmt.Errorf("xpath %q: %w", sel.Expr, err)
		}
	case page.KindCSS:
		if _, err := cascadia.ParseGroup(sel.Expr); err != nil {
			return fmt.Errorf("css %q: %w", sel.Expr, err)
		}
	}
	return nil
}

// FromFile loads and validates a profile from a JSON or YAML file.
func FromFile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile file: %w", err)
	}

	var p Profile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &p); err != nil {
			return Profile{}, fmt.Errorf("failed to parse JSON profile: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Profile{}, fmt.Errorf("failed to parse YAML profile: %w", err)
		}
	default:
		return Profile{}, fmt.Errorf("unsupported profile file format: %s", ext)
	}

	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// YAML renders the profile as YAML.
func (p Profile) YAML() ([]byte, error) {
	return yaml.Marshal(p)
}
