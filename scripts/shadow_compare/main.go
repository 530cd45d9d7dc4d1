// Command shadow_compare replays a set of requests against the legacy
// timetable backend and this service and reports where they disagree.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type target struct {
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Form     map[string]string `json:"form"`
	Critical bool              `json:"critical"`
	// Fields lists top-level JSON keys that must match. Empty means the whole body.
	Fields []string `json:"fields"`
	// Headers must be present on both sides; values are not compared.
	Headers []string `json:"headers"`
	Binary  bool     `json:"binary"`
}

type targetFile struct {
	Targets []target `json:"targets"`
}

type comparison struct {
	Target         target
	LegacyStatus   int
	GoStatus       int
	StatusMatch    bool
	BodyMatch      bool
	Notes          []string
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

func (c comparison) diff() bool {
	return !c.StatusMatch || !c.BodyMatch
}

func main() {
	var (
		goBase      string
		legacyBase  string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&goBase, "go-base", "http://localhost:8000", "Go service base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:8001", "Legacy backend base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "shadow_compare", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "HTTP client timeout")
	flag.Parse()

	logr, _ := zap.NewDevelopment()
	defer logr.Sync() //nolint:errcheck

	targets, err := loadTargets(targetsPath)
	if err != nil {
		logr.Fatal("failed to load targets", zap.String("path", targetsPath), zap.Error(err))
	}

	client := resty.New().SetTimeout(timeout)
	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)

	for _, t := range targets {
		comp := compareTarget(client, goBase, legacyBase, t)
		switch {
		case comp.Error != nil && t.Critical:
			breaking++
		case comp.Error == nil && comp.diff() && t.Critical:
			breaking++
		case comp.Error == nil && comp.diff():
			optionalDiff++
		}
		comparisons = append(comparisons, comp)
	}

	printReport(comparisons)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return file.Targets, nil
}

func compareTarget(client *resty.Client, goBase, legacyBase string, tgt target) comparison {
	comp := comparison{Target: tgt}
	goResp, goErr := performRequest(client, goBase, tgt)
	legacyResp, legacyErr := performRequest(client, legacyBase, tgt)

	if goErr != nil {
		comp.Error = fmt.Errorf("go request failed: %w", goErr)
		return comp
	}
	if legacyErr != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", legacyErr)
		return comp
	}

	comp.DurationGo = goResp.Time()
	comp.DurationLegacy = legacyResp.Time()
	comp.GoStatus = goResp.StatusCode()
	comp.LegacyStatus = legacyResp.StatusCode()
	comp.StatusMatch = comp.GoStatus == comp.LegacyStatus

	comp.BodyMatch = true
	for _, header := range tgt.Headers {
		goHas := goResp.Header().Get(header) != ""
		legacyHas := legacyResp.Header().Get(header) != ""
		if goHas != legacyHas {
			comp.BodyMatch = false
			comp.Notes = append(comp.Notes, fmt.Sprintf("header %s: go=%t legacy=%t", header, goHas, legacyHas))
		}
	}

	if tgt.Binary {
		goType := mediaType(goResp.Header().Get("Content-Type"))
		legacyType := mediaType(legacyResp.Header().Get("Content-Type"))
		if goType != legacyType {
			comp.BodyMatch = false
			comp.Notes = append(comp.Notes, fmt.Sprintf("content type: go=%s legacy=%s", goType, legacyType))
		}
		return comp
	}

	if !bodiesEqual(goResp.Body(), legacyResp.Body(), tgt.Fields) {
		comp.BodyMatch = false
		comp.Notes = append(comp.Notes, "body differs")
	}
	return comp
}

func performRequest(client *resty.Client, base string, tgt target) (*resty.Response, error) {
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = resty.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req := client.R()
	if len(tgt.Form) > 0 {
		req.SetFormData(tgt.Form)
	}
	return req.Execute(method, strings.TrimRight(base, "/")+path)
}

func mediaType(contentType string) string {
	major, _, _ := strings.Cut(contentType, "/")
	return strings.ToLower(strings.TrimSpace(major))
}

func bodiesEqual(a, b []byte, fields []string) bool {
	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return strings.TrimSpace(string(a)) == strings.TrimSpace(string(b))
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	if len(fields) > 0 {
		aj = pick(aj, fields)
		bj = pick(bj, fields)
	}
	return reflect.DeepEqual(aj, bj)
}

func pick(v interface{}, fields []string) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	obj, ok := v.(map[string]interface{})
	if !ok {
		return out
	}
	for _, f := range fields {
		out[f] = obj[f]
	}
	return out
}

func printReport(results []comparison) {
	fmt.Println("Shadow Compare Report")
	fmt.Println("======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if res.diff() {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		fmt.Printf("  Go Status: %d (%s)\n", res.GoStatus, res.DurationGo)
		fmt.Printf("  Legacy Status: %d (%s)\n", res.LegacyStatus, res.DurationLegacy)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
		for _, note := range res.Notes {
			fmt.Printf("  - %s\n", note)
		}
	}
}
