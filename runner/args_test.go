package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRuntimeArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "no args", args: nil},
		{name: "single dash flags", args: []string{"-race", "-count=1", "-XX:+EnableDynamicAgentLoading", "-Xshare:off"}},
		{name: "double dash flag", args: []string{"--timeout=10m"}},
		{name: "empty", args: []string{""}, wantErr: true},
		{name: "lone dash", args: []string{"-"}, wantErr: true},
		{name: "lone double dash", args: []string{"--"}, wantErr: true},
		{name: "bare word", args: []string{"-race", "race"}, wantErr: true},
		{name: "embedded space", args: []string{"-run TestFoo"}, wantErr: true},
		{name: "embedded tab", args: []string{"-v\t"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRuntimeArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildArgsKeepsOrder(t *testing.T) {
	args := buildArgs(
		[]string{"test", "-json"},
		[]string{"-XX:+EnableDynamicAgentLoading", "-Xshare:off", "-XX:+EnableDynamicAgentLoading"},
		[]string{"./..."},
	)
	assert.Equal(t, []string{
		"test", "-json",
		"-XX:+EnableDynamicAgentLoading", "-Xshare:off", "-XX:+EnableDynamicAgentLoading",
		"./...",
	}, args)
}
