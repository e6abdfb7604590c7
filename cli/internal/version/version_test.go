package version

import "testing"

func TestString(t *testing.T) {
	savedVersion, savedCommit := Version, Commit
	defer func() { Version, Commit = savedVersion, savedCommit }()

	tests := []struct {
		name    string
		version string
		commit  string
		want    string
		wantUA  string
	}{
		{"dev with commit", "dev", "abc1234", "dev (abc1234)", "utgen/dev-abc1234"},
		{"dev no commit", "dev", "", "dev", "utgen/dev"},
		{"release ignores commit", "v1.0.0", "abc1234", "v1.0.0", "utgen/v1.0.0"},
		{"release no commit", "v1.0.0", "", "v1.0.0", "utgen/v1.0.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version, Commit = tt.version, tt.commit
			if got := String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if got := UserAgent(); got != tt.wantUA {
				t.Errorf("UserAgent() = %q, want %q", got, tt.wantUA)
			}
		})
	}
}
