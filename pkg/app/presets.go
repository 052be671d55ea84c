package app

import (
	"fmt"
	"sort"
)

// Preset: режим работы агента: какие инструменты ему доступны и
// подмешивается ли контекст из проиндексированных документов.
//
// Пресеты накладываются поверх config.yaml: выключенный там инструмент
// пресет не включит.
type Preset struct {
	Name        string
	Description string

	// Tools: разрешённые инструменты. nil: все включённые в config.yaml,
	// пустой срез: без инструментов.
	Tools []string

	// Retrieval подмешивает найденные фрагменты документов в каждый ход.
	Retrieval bool

	// Title: заголовок TUI.
	Title string
}

// Filter возвращает фильтр инструментов пресета.
func (p *Preset) Filter() ToolFilter {
	if p.Tools == nil {
		return nil
	}
	return OnlyTools(p.Tools...)
}

// DefaultPreset: пресет по умолчанию для chat и tui.
const DefaultPreset = "travel"

// Presets: встроенные пресеты.
var Presets = map[string]*Preset{
	"travel": {
		Name:        "travel",
		Description: "Travel assistant with every configured tool",
		Title:       "TripMate",
	},
	"chat": {
		Name:        "chat",
		Description: "Plain conversation with history, no tools",
		Tools:       []string{},
		Title:       "TripMate chat",
	},
	"guide": {
		Name:        "guide",
		Description: "Answers from indexed travel notes with history-aware retrieval",
		Tools:       []string{ToolDocumentSearch, ToolWikipedia},
		Retrieval:   true,
		Title:       "TripMate guide",
	},
	"explorer": {
		Name:        "explorer",
		Description: "Nearby recommendations and routes",
		Tools: []string{
			ToolNearbyPlaces, ToolRecommendPlaces, ToolPlaceDetails,
			ToolSearchPlaces, ToolKeywordPlaces, ToolSaveRoute, ToolListRoutes,
			ToolCityWeather, ToolCityTime,
		},
		Title: "TripMate explorer",
	},
}

// GetPreset получает пресет по имени.
//
// Возвращает ошибку с подсказкой доступных пресетов если не найден.
func GetPreset(name string) (*Preset, error) {
	if name == "" {
		name = DefaultPreset
	}
	preset, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("preset '%s' not found. Available presets: %v", name, PresetNames())
	}
	return preset, nil
}

// RegisterPreset регистрирует пользовательский пресет.
//
// Возвращает ошибку если пресет с таким именем уже существует.
func RegisterPreset(preset *Preset) error {
	if preset == nil || preset.Name == "" {
		return fmt.Errorf("preset name is required")
	}
	if _, exists := Presets[preset.Name]; exists {
		return fmt.Errorf("preset '%s' already exists", preset.Name)
	}
	Presets[preset.Name] = preset
	return nil
}

// PresetNames возвращает имена пресетов по алфавиту.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for n := range Presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
