package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nfarrell/chat-stream-ui/internal/chat"
	"github.com/nfarrell/chat-stream-ui/internal/services"
	"gopkg.in/yaml.v3"
)

const defaultSystemPrompt = "You are a helpful AI assistant. Format your answers in markdown."

// defaultTitlePrompt matches the behavior expected by the title generator: a
// terse topic summary with no decoration.
const defaultTitlePrompt = "Generate a short, descriptive title (3-5 words) for a conversation " +
	"based on the user's first message. The title should capture the main topic or intent. " +
	"Respond with only the title, no quotes or extra text."

type llmConfig interface {
	llm(systemPrompt, titlePrompt string, logger *slog.Logger) (chat.Streamer, error)
	titleGen(systemPrompt, titlePrompt string, logger *slog.Logger) (chat.TitleGenerator, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port                 string    `yaml:"port"`
	SystemPrompt         string    `yaml:"systemPrompt"`
	TitleGeneratorPrompt string    `yaml:"titleGeneratorPrompt"`
	LLM                  llmConfig `yaml:"llm"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	MaxTokens     int    `yaml:"maxTokens"`
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port                 string         `yaml:"port"`
		SystemPrompt         string         `yaml:"systemPrompt"`
		TitleGeneratorPrompt string         `yaml:"titleGeneratorPrompt"`
		LLM                  map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	c.SystemPrompt = rawConfig.SystemPrompt
	c.TitleGeneratorPrompt = rawConfig.TitleGeneratorPrompt
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	if c.TitleGeneratorPrompt == "" {
		c.TitleGeneratorPrompt = defaultTitlePrompt
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "openai":
		llm = &openAIConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

func (o openAIConfig) newOpenAI(systemPrompt, titlePrompt string, logger *slog.Logger) (services.OpenAI, error) {
	if o.Model == "" {
		return services.OpenAI{}, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt, titlePrompt, logger), nil
}

func (o openAIConfig) llm(systemPrompt, titlePrompt string, logger *slog.Logger) (chat.Streamer, error) {
	return o.newOpenAI(systemPrompt, titlePrompt, logger)
}

func (o openAIConfig) titleGen(systemPrompt, titlePrompt string, logger *slog.Logger) (chat.TitleGenerator, error) {
	return o.newOpenAI(systemPrompt, titlePrompt, logger)
}

func (o ollamaConfig) newOllama(systemPrompt, titlePrompt string) (services.Ollama, error) {
	if o.Model == "" {
		return services.Ollama{}, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	return services.NewOllama(host, o.Model, systemPrompt, titlePrompt), nil
}

func (o ollamaConfig) llm(systemPrompt, titlePrompt string, _ *slog.Logger) (chat.Streamer, error) {
	return o.newOllama(systemPrompt, titlePrompt)
}

func (o ollamaConfig) titleGen(systemPrompt, titlePrompt string, _ *slog.Logger) (chat.TitleGenerator, error) {
	return o.newOllama(systemPrompt, titlePrompt)
}

func (a anthropicConfig) newAnthropic(systemPrompt, titlePrompt string) (services.Anthropic, error) {
	if a.Model == "" {
		return services.Anthropic{}, fmt.Errorf("model is required")
	}
	if a.MaxTokens == 0 {
		return services.Anthropic{}, fmt.Errorf("maxTokens is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(apiKey, a.Model, a.MaxTokens, systemPrompt, titlePrompt), nil
}

func (a anthropicConfig) llm(systemPrompt, titlePrompt string, _ *slog.Logger) (chat.Streamer, error) {
	return a.newAnthropic(systemPrompt, titlePrompt)
}

func (a anthropicConfig) titleGen(systemPrompt, titlePrompt string, _ *slog.Logger) (chat.TitleGenerator, error) {
	return a.newAnthropic(systemPrompt, titlePrompt)
}
