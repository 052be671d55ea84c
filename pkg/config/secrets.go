package config

import (
	"context"
	"fmt"
	"strings"
)

// SecretPrefix помечает значение, которое нужно взять из AWS SSM Parameter Store.
const SecretPrefix = "ssm:"

// SecretResolver достаёт секрет по имени параметра.
//
// Реализация: pkg/paramstore.Client.
type SecretResolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// HasSecretRefs сообщает, есть ли в конфиге значения вида "ssm:/path".
func (c *AppConfig) HasSecretRefs() bool {
	for _, p := range c.secretFields() {
		if strings.HasPrefix(*p, SecretPrefix) {
			return true
		}
	}
	for _, def := range c.Models.Definitions {
		if strings.HasPrefix(def.APIKey, SecretPrefix) {
			return true
		}
	}
	return false
}

// ResolveSecrets заменяет все значения "ssm:/path" на содержимое параметров.
//
// Одинаковые ссылки запрашиваются один раз.
func (c *AppConfig) ResolveSecrets(ctx context.Context, resolver SecretResolver) error {
	cache := make(map[string]string)

	resolve := func(v string) (string, error) {
		if !strings.HasPrefix(v, SecretPrefix) {
			return v, nil
		}
		name := strings.TrimPrefix(v, SecretPrefix)
		if cached, ok := cache[name]; ok {
			return cached, nil
		}
		value, err := resolver.GetSecret(ctx, name)
		if err != nil {
			return "", fmt.Errorf("resolve secret %s: %w", name, err)
		}
		cache[name] = value
		return value, nil
	}

	for _, p := range c.secretFields() {
		v, err := resolve(*p)
		if err != nil {
			return err
		}
		*p = v
	}

	// ModelDef хранится в map по значению - обновляем копию и кладём обратно
	for alias, def := range c.Models.Definitions {
		v, err := resolve(def.APIKey)
		if err != nil {
			return fmt.Errorf("model '%s': %w", alias, err)
		}
		def.APIKey = v
		c.Models.Definitions[alias] = def
	}
	return nil
}

// secretFields возвращает указатели на поля вне models, где допустимы секреты.
func (c *AppConfig) secretFields() []*string {
	return []*string{
		&c.Maps.APIKey,
		&c.Weather.APIKey,
		&c.Search.Wikipedia.APIKey,
		&c.Search.Tavily.APIKey,
		&c.S3.AccessKey,
		&c.S3.SecretKey,
	}
}
