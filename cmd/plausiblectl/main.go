// plausiblectl is a CLI tool for operating a plausible-bridge instance.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	plausiblectl settings [--bridge URL]
//	plausiblectl set KEY=VALUE... [--bridge URL]
//	plausiblectl script-tag [--single] [--author NAME] [--term TAXONOMY:NAME]...
//	plausiblectl thankyou --order ID [--locale LOCALE]
//	plausiblectl health
//
// Examples:
//
//	plausiblectl set domain_name=example.org enhanced_measurements='["404","revenue"]'
//	plausiblectl script-tag --single --author Jo --term category:News
//	plausiblectl thankyou --order 1042 --locale de_DE
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

var client = &http.Client{Timeout: 30 * time.Second}

// Global flags (apply to all commands)
var (
	bridgeURL   string
	authToken   string
	siteName    string
	hostVersion string
	locale      string
	quiet       bool
	noColor     bool
	verbose     bool
)

// defaultTag is the tag WordPress prints before the bridge rewrites it.
const defaultTag = `<script id="plausible-analytics-js" src="https://plausible.io/js/plausible.js"></script>`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "settings":
		runSettings(args)
	case "set":
		runSet(args)
	case "script-tag":
		runScriptTag(args)
	case "thankyou":
		runThankYou(args)
	case "health":
		runHealth(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `plausiblectl - plausible-bridge operations tool

Usage:
  plausiblectl <command> [options]

Commands:
  settings    Show the stored settings (API token redacted)
  set         Change settings and show the provisioning report
  script-tag  Render the tracking script tag for a page
  thankyou    Render the purchase tracking script for an order
  health      Check that the bridge is up

Examples:
  # Enable 404 and revenue tracking
  plausiblectl set enhanced_measurements='["404","revenue"]'

  # Preview the tag on a single post
  plausiblectl script-tag --single --author Jo --term category:News

Run 'plausiblectl <command> -h' for command-specific options.
`)
}

// commonFlags returns a flag set carrying the global options.
func commonFlags(name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ExitOnError)
	fs.StringVarP(&bridgeURL, "bridge", "b", envOr("PLAUSIBLE_BRIDGE_URL", "http://localhost:8080"), "Bridge base URL")
	fs.StringVar(&authToken, "token", os.Getenv("BRIDGE_AUTH_TOKEN"), "Bearer token for the bridge")
	fs.StringVar(&siteName, "site", "localhost", "Site reported in the Plausible-Host header")
	fs.StringVar(&hostVersion, "host-version", "2.1.0", "Plugin version reported in the Plausible-Host header")
	fs.StringVar(&locale, "locale", "", "Site locale reported in the Plausible-Host header")
	fs.BoolVarP(&quiet, "quiet", "q", false, "Quiet mode - only output the result")
	fs.BoolVar(&noColor, "no-color", false, "Disable colored output")
	fs.BoolVarP(&verbose, "verbose", "v", false, "Verbose - show full request/response")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: plausiblectl %s\n\nOptions:\n", usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseFlags(fs *pflag.FlagSet, args []string) {
	fs.Parse(args)
	if noColor || os.Getenv("NO_COLOR") != "" {
		disableColors()
	}
}

// =============================================================================
// SETTINGS COMMANDS
// =============================================================================

func runSettings(args []string) {
	fs := commonFlags("settings", "settings [options]")
	parseFlags(fs, args)

	resp, err := doRequest("GET", "/settings", nil, false)
	if err != nil {
		fatal("Failed to read settings: %v", err)
	}
	if quiet {
		out, _ := json.MarshalIndent(resp["settings"], "", "  ")
		fmt.Println(string(out))
	}
}

func runSet(args []string) {
	fs := commonFlags("set", "set KEY=VALUE... [options]")
	parseFlags(fs, args)

	patch, err := parseAssignments(fs.Args())
	if err != nil {
		fatal("%v", err)
	}
	if len(patch) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("PUT", "/settings", patch, false)
	if err != nil {
		fatal("Failed to save settings: %v", err)
	}
	printSuccess("Settings saved")
	printReport(resp["provisioning"])
}

// parseAssignments turns KEY=VALUE arguments into a settings patch. Values
// that parse as JSON are sent as such, anything else as a string.
func parseAssignments(args []string) (map[string]json.RawMessage, error) {
	patch := make(map[string]json.RawMessage, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected KEY=VALUE, got %q", arg)
		}
		if json.Valid([]byte(value)) {
			patch[key] = json.RawMessage(value)
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		patch[key] = raw
	}
	return patch, nil
}

func printReport(v any) {
	report, ok := v.(map[string]any)
	if !ok || quiet {
		return
	}
	if skipped, _ := report["skipped"].(bool); skipped {
		printWarning("Provisioning skipped")
	}
	if link, _ := report["shared_link"].(string); link != "" {
		printInfo("Shared link: %s", link)
	}
	for _, key := range []string{"errors", "warnings"} {
		entries, _ := report[key].([]any)
		for _, e := range entries {
			m, _ := e.(map[string]any)
			text := fmt.Sprintf("%v: %v", m["operation"], m["message"])
			if key == "errors" {
				printError("%s", text)
			} else {
				printWarning("%s", text)
			}
		}
	}
}

// =============================================================================
// HOOK COMMANDS
// =============================================================================

func runScriptTag(args []string) {
	fs := commonFlags("script-tag", "script-tag [options]")
	var single bool
	var author, tag string
	var terms []string
	fs.BoolVar(&single, "single", false, "Render for a single post, page or product")
	fs.StringVar(&author, "author", "", "Author of the content")
	fs.StringArrayVar(&terms, "term", nil, "Taxonomy term as TAXONOMY:NAME (repeatable)")
	fs.StringVar(&tag, "tag", defaultTag, "Script tag to rewrite")
	parseFlags(fs, args)

	ctx := map[string]any{"single_content": single}
	if author != "" {
		ctx["author"] = author
	}
	var termList []map[string]string
	for _, t := range terms {
		taxonomy, name, ok := strings.Cut(t, ":")
		if !ok {
			fatal("expected TAXONOMY:NAME, got %q", t)
		}
		termList = append(termList, map[string]string{"taxonomy": taxonomy, "name": name})
	}
	if len(termList) > 0 {
		ctx["terms"] = termList
	}

	resp, err := doRequest("POST", "/hooks/script-tag", map[string]any{"tag": tag, "context": ctx}, true)
	if err != nil {
		fatal("Failed to render script tag: %v", err)
	}
	printHTML(resp)
}

func runThankYou(args []string) {
	fs := commonFlags("thankyou", "thankyou --order ID [options]")
	var orderID int64
	fs.Int64Var(&orderID, "order", 0, "Order ID (required)")
	parseFlags(fs, args)

	if orderID <= 0 {
		fs.Usage()
		os.Exit(1)
	}

	resp, err := doRequest("POST", fmt.Sprintf("/hooks/thankyou/%d", orderID), nil, true)
	if err != nil {
		fatal("Failed to render purchase script: %v", err)
	}
	if html, _ := resp["html"].(string); html == "" && !quiet {
		printInfo("Nothing to render (purchase already tracked or revenue disabled)")
		return
	}
	printHTML(resp)
}

func runHealth(args []string) {
	fs := commonFlags("health", "health [options]")
	parseFlags(fs, args)

	resp, err := doRequest("GET", "/health", nil, false)
	if err != nil {
		fatal("Bridge unavailable: %v", err)
	}
	printSuccess("Bridge status: %v", resp["status"])
}

func printHTML(resp map[string]any) {
	html, _ := resp["html"].(string)
	if quiet {
		fmt.Println(html)
		return
	}
	fmt.Printf("\n%s%s%s\n", colorCyan, html, colorReset)
}

// =============================================================================
// HTTP
// =============================================================================

// hostHeader is the Plausible-Host value sent on hook routes.
func hostHeader() string {
	h := fmt.Sprintf("site=%q, version=%q", siteName, hostVersion)
	if locale != "" {
		h += fmt.Sprintf(", locale=%q", locale)
	}
	return h
}

func doRequest(method, path string, body any, hook bool) (map[string]any, error) {
	var reqBody io.Reader
	var reqJSON []byte

	if body != nil {
		var err error
		reqJSON, err = json.MarshalIndent(body, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(reqJSON)
	}

	req, err := http.NewRequest(method, strings.TrimSuffix(bridgeURL, "/")+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	if hook {
		req.Header.Set("Plausible-Host", hostHeader())
	}

	if !quiet {
		printRequest(method, path, reqJSON)
	}

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if !quiet {
		printResponse(resp.StatusCode, respBody, duration)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]any
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return result, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
