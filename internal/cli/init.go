package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/geocine/geopress/internal/config"
	"github.com/geocine/geopress/internal/utils"
	"github.com/pelletier/go-toml/v2"
)

// InitOptions captures options for initializing a new site
type InitOptions struct {
	Name        string // directory to create
	Title       string // site title; defaults to Name
	Description string
	SrcDir      string // default: posts
	BuildDir    string // default: public
	Now         time.Time
}

// Init scaffolds a new site: site.toml, a first post, and a .gitignore for
// the build output. Existing files are never overwritten.
func Init(opts InitOptions) error {
	if opts.Name == "" {
		opts.Name = "my-site"
	}
	if opts.SrcDir == "" {
		opts.SrcDir = "posts"
	}
	if opts.BuildDir == "" {
		opts.BuildDir = "public"
	}
	if opts.Title == "" {
		opts.Title = opts.Name
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	root := opts.Name
	configPath := filepath.Join(root, config.FileName)
	if utils.FileExists(configPath) {
		return fmt.Errorf("'%s' already contains a %s", root, config.FileName)
	}

	srcPath := filepath.Join(root, opts.SrcDir)
	if err := utils.CreateDirAll(srcPath); err != nil {
		return err
	}

	cfg := config.NewDefaultConfig()
	cfg.Site.Title = opts.Title
	cfg.Site.Description = opts.Description
	cfg.Site.Src = opts.SrcDir
	cfg.Build.BuildDir = opts.BuildDir
	siteToml, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", config.FileName, err)
	}
	if err := utils.WriteFile(configPath, siteToml); err != nil {
		return err
	}

	hello := filepath.Join(srcPath, "hello-world.md")
	if !utils.FileExists(hello) {
		post := fmt.Sprintf(`---
title: Hello World
date: %s
tags: [meta]
summary: The first post on %s.
---
# Hello World

Start writing here.

## Next steps

Add Markdown files to the %s directory and run `+"`geopress serve`"+`.
`, opts.Now.Format("2006-01-02"), opts.Title, opts.SrcDir)
		if err := utils.WriteFile(hello, []byte(post)); err != nil {
			return err
		}
	}

	gitignore := filepath.Join(root, ".gitignore")
	if !utils.FileExists(gitignore) {
		_ = utils.WriteFile(gitignore, []byte(opts.BuildDir+"\n"))
	}
	return nil
}
