// Package profile holds the page content: biography cards and the project
// gallery each card's panel reveals.
package profile

import (
	"errors"
	"fmt"
	"html/template"
	"os"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"gopkg.in/yaml.v3"
)

// Document is everything the home page renders.
type Document struct {
	Title    string    `yaml:"title"`
	Logo     string    `yaml:"logo"`
	Profiles []Profile `yaml:"profiles"`
}

// Profile is one biography card. Links are optional and URLs are passed
// through untouched for the asset server to resolve.
type Profile struct {
	Image        string    `yaml:"image"`
	Name         string    `yaml:"name"`
	Title        string    `yaml:"title"`
	Description  string    `yaml:"description"`
	PortfolioURL string    `yaml:"portfolio_url,omitempty"`
	ResumeURL    string    `yaml:"resume_url,omitempty"`
	EmailURL     string    `yaml:"email_url,omitempty"`
	LinkedInURL  string    `yaml:"linkedin_url,omitempty"`
	Projects     []Project `yaml:"projects"`
}

// Project is a gallery tile inside the Projects panel.
type Project struct {
	Title string `yaml:"title"`
	Image string `yaml:"image"`
	URL   string `yaml:"url"`
}

// Link is a rendered action or contact link.
type Link struct {
	Kind  string
	Label string
	URL   string
}

// Load reads a YAML document from path. A missing file returns
// os.ErrNotExist so callers can fall back to built-in content.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	doc.Normalize()
	return &doc, nil
}

// LoadOr is Load with def used when the file does not exist.
func LoadOr(path string, def *Document) (*Document, error) {
	doc, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		def.Normalize()
		return def, nil
	}
	return doc, err
}

var descriptionPolicy = bluemonday.UGCPolicy()

// Normalize trims every field and strips unsafe markup from descriptions.
func (d *Document) Normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.Logo = strings.TrimSpace(d.Logo)
	for i := range d.Profiles {
		d.Profiles[i].Normalize()
	}
}

func (p *Profile) Normalize() {
	p.Image = strings.TrimSpace(p.Image)
	p.Name = strings.TrimSpace(p.Name)
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(descriptionPolicy.Sanitize(p.Description))
	p.PortfolioURL = strings.TrimSpace(p.PortfolioURL)
	p.ResumeURL = strings.TrimSpace(p.ResumeURL)
	p.EmailURL = strings.TrimSpace(p.EmailURL)
	p.LinkedInURL = strings.TrimSpace(p.LinkedInURL)

	projects := p.Projects[:0]
	for _, pr := range p.Projects {
		pr.Title = strings.TrimSpace(pr.Title)
		pr.Image = strings.TrimSpace(pr.Image)
		pr.URL = strings.TrimSpace(pr.URL)
		if pr.Title == "" && pr.Image == "" {
			continue
		}
		if pr.URL == "" {
			pr.URL = "#"
		}
		projects = append(projects, pr)
	}
	p.Projects = projects
}

// Problems lists missing required fields. The card still renders without
// them.
func (p *Profile) Problems() []string {
	var out []string
	if p.Name == "" {
		out = append(out, "missing name")
	}
	if p.Image == "" {
		out = append(out, "missing image")
	}
	return out
}

// Actions returns the text links shown under the card, skipping absent ones.
func (p *Profile) Actions() []Link {
	var out []Link
	if p.PortfolioURL != "" {
		out = append(out, Link{Kind: "portfolio", Label: "Portfolio", URL: p.PortfolioURL})
	}
	if p.ResumeURL != "" {
		out = append(out, Link{Kind: "resume", Label: "Resume", URL: p.ResumeURL})
	}
	return out
}

// Contacts returns the icon links, skipping absent ones.
func (p *Profile) Contacts() []Link {
	var out []Link
	if p.EmailURL != "" {
		out = append(out, Link{Kind: "email", Label: "Email", URL: p.EmailURL})
	}
	if p.LinkedInURL != "" {
		out = append(out, Link{Kind: "linkedin", Label: "LinkedIn", URL: p.LinkedInURL})
	}
	return out
}

// Paragraphs splits the sanitised description on blank lines.
func (p *Profile) Paragraphs() []template.HTML {
	var out []template.HTML
	for _, para := range strings.Split(p.Description, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		out = append(out, template.HTML(para))
	}
	return out
}
