// Command muhasibi is a CLI entrypoint for the evidence-only Arabic
// question-answering engine. It runs the pipeline directly against a
// configured SQLite database and model provider.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"muhasibi"
	"muhasibi/pipeline"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	mode := flag.String("mode", "", "Answer mode: answer|debate|socratic|judge|natural_chat")
	feedback := flag.Bool("feedback-from-stdin", false, "Read request_id and rating pairs from stdin after answering")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := muhasibi.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		err = json.NewDecoder(f).Decode(&cfg)
		f.Close()
		if err != nil {
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
	}
	applyEnvOverrides(&cfg)

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		question = readQuestionFromStdin()
	}
	if question == "" {
		slog.Error("no question provided (pass as arguments or pipe via stdin)")
		os.Exit(1)
	}

	engine, err := muhasibi.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	var opts []muhasibi.AskOption
	if *mode != "" {
		opts = append(opts, muhasibi.WithMode(pipeline.Mode(*mode)))
	}

	resp, records, err := engine.Answer(ctx, question, opts...)
	if err != nil {
		slog.Error("answering question", "error", err)
		os.Exit(1)
	}

	out := map[string]any{
		"response": resp,
		"trace":    records,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		slog.Error("encoding response", "error", err)
		os.Exit(1)
	}

	if *feedback {
		collectFeedback(ctx, engine)
	}
}

func readQuestionFromStdin() string {
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return ""
	}
	scanner := bufio.NewScanner(os.Stdin)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func collectFeedback(ctx context.Context, engine *muhasibi.Engine) {
	fmt.Fprintln(os.Stderr, "request_id rating(-1|0|1) comment:")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 2 {
		return
	}
	var rating int
	fmt.Sscanf(fields[1], "%d", &rating)
	comment := ""
	if len(fields) > 2 {
		comment = strings.Join(fields[2:], " ")
	}
	if err := engine.Feedback(ctx, fields[0], rating, nil, comment); err != nil {
		slog.Error("recording feedback", "error", err)
	}
}

func applyEnvOverrides(cfg *muhasibi.Config) {
	if v := os.Getenv("MUHASIBI_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("MUHASIBI_CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("MUHASIBI_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("MUHASIBI_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("MUHASIBI_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if v := os.Getenv("MUHASIBI_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("MUHASIBI_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("MUHASIBI_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("MUHASIBI_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if cfg.Chat.APIKey == "" {
		switch cfg.Chat.Provider {
		case "openai":
			cfg.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
		case "groq":
			cfg.Chat.APIKey = os.Getenv("GROQ_API_KEY")
		case "openrouter":
			cfg.Chat.APIKey = os.Getenv("OPENROUTER_API_KEY")
		case "xai":
			cfg.Chat.APIKey = os.Getenv("XAI_API_KEY")
		case "gemini":
			cfg.Chat.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
}
