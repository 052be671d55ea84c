package paramstore

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/require"
)

type fakeSSM struct {
	out    *ssm.GetParameterOutput
	err    error
	calls  int
	lastIn *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.calls++
	f.lastIn = in
	return f.out, f.err
}

func TestNew_NilAPI(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestGetSecret_DecryptsAndCaches(t *testing.T) {
	api := &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String("sk-secret")}}}
	c, err := New(api)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		v, err := c.GetSecret(context.Background(), " /tripmate/openai ")
		require.NoError(t, err)
		require.Equal(t, "sk-secret", v)
	}

	require.Equal(t, 1, api.calls)
	require.Equal(t, "/tripmate/openai", aws.ToString(api.lastIn.Name))
	require.True(t, aws.ToBool(api.lastIn.WithDecryption))
}

func TestGetSecret_Errors(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeSSM
		key  string
	}{
		{"empty name", &fakeSSM{}, "  "},
		{"api error", &fakeSSM{err: errors.New("AccessDenied")}, "/x"},
		{"missing value", &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{}}}, "/x"},
		{"nil output", &fakeSSM{}, "/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.api)
			require.NoError(t, err)
			_, err = c.GetSecret(context.Background(), tt.key)
			require.Error(t, err)
		})
	}
}
