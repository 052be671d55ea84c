// Package paramstore читает секреты из AWS SSM Parameter Store.
//
// Используется конфигом для значений вида "ssm:/tripmate/openai_api_key".
package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI: минимальный интерфейс SSM, нужный клиенту.
// *ssm.Client из aws-sdk-go-v2 ему удовлетворяет.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Client читает параметры с расшифровкой и кэширует их на время жизни процесса.
type Client struct {
	api ssmAPI

	mu    sync.Mutex
	cache map[string]string
}

// New создаёт Client поверх SSM API.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api, cache: make(map[string]string)}, nil
}

// NewFromAWSConfig создаёт клиент из загруженной конфигурации AWS SDK.
func NewFromAWSConfig(cfg aws.Config) *Client {
	c, _ := New(ssm.NewFromConfig(cfg))
	return c
}

// GetSecret возвращает значение параметра name (SecureString расшифровывается).
func (c *Client) GetSecret(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	c.mu.Lock()
	if v, ok := c.cache[name]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q has no value", name)
	}

	value := *out.Parameter.Value
	c.mu.Lock()
	c.cache[name] = value
	c.mu.Unlock()
	return value, nil
}
