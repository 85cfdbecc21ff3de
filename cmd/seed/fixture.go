package main

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hanko-field/commerce/internal/services"
)

type fixture struct {
	DepositSettings []depositFixture `yaml:"depositSettings"`
	Products        []productFixture `yaml:"products"`
	Counters        []counterFixture `yaml:"counters"`
}

type depositFixture struct {
	ID       string  `yaml:"id"`
	MinTotal int64   `yaml:"minTotal"`
	MaxTotal int64   `yaml:"maxTotal"`
	Percent  float64 `yaml:"percent"`
	Active   *bool   `yaml:"active"`
}

type productFixture struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	SKU      string `yaml:"sku"`
	Price    int64  `yaml:"price"`
	Currency string `yaml:"currency"`
	Image    string `yaml:"image"`
	Stock    int    `yaml:"stock"`
	Active   *bool  `yaml:"active"`
}

type counterFixture struct {
	ID           string `yaml:"id"`
	Step         int64  `yaml:"step"`
	InitialValue *int64 `yaml:"initialValue"`
	MaxValue     *int64 `yaml:"maxValue"`
}

// parseFixture decodes and validates a seed file. Unknown keys are rejected so typos surface early.
func parseFixture(raw []byte) (fixture, error) {
	var f fixture
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return fixture{}, fmt.Errorf("decode: %w", err)
	}

	var errs []error
	for i, d := range f.DepositSettings {
		switch {
		case d.MinTotal < 0:
			errs = append(errs, fmt.Errorf("depositSettings[%d]: minTotal must be >= 0", i))
		case d.MaxTotal < d.MinTotal:
			errs = append(errs, fmt.Errorf("depositSettings[%d]: maxTotal must be >= minTotal", i))
		case !services.ValidDepositPercent(d.Percent):
			errs = append(errs, fmt.Errorf("depositSettings[%d]: percent must be in (0, 100]", i))
		}
	}
	seen := make(map[string]struct{}, len(f.Products))
	for i, p := range f.Products {
		id := strings.TrimSpace(p.ID)
		switch {
		case id == "":
			errs = append(errs, fmt.Errorf("products[%d]: id is required", i))
		case p.Price < 0:
			errs = append(errs, fmt.Errorf("products[%d]: price must be >= 0", i))
		case p.Stock < 0:
			errs = append(errs, fmt.Errorf("products[%d]: stock must be >= 0", i))
		}
		if _, dup := seen[id]; dup && id != "" {
			errs = append(errs, fmt.Errorf("products[%d]: duplicate id %q", i, id))
		}
		seen[id] = struct{}{}
	}
	for i, c := range f.Counters {
		if strings.TrimSpace(c.ID) == "" {
			errs = append(errs, fmt.Errorf("counters[%d]: id is required", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fixture{}, err
	}
	return f, nil
}

func boolOrTrue(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}
