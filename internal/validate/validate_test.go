package validate

import "testing"

type sample struct {
	Email  string   `json:"email" validate:"required,email"`
	Name   string   `json:"name" validate:"max=5"`
	Rating int      `json:"rating" validate:"gte=1,lte=5"`
	Tags   []string `json:"tags" validate:"max=2"`
	Role   string   `json:"role" validate:"omitempty,oneof=user admin"`
}

func TestMap(t *testing.T) {
	tests := []struct {
		name string
		in   sample
		want map[string]string
	}{
		{
			name: "valid",
			in:   sample{Email: "a@b.co", Name: "ann", Rating: 3},
			want: nil,
		},
		{
			name: "every rule broken",
			in:   sample{Email: "nope", Name: "abcdefg", Rating: 6, Tags: []string{"a", "b", "c"}, Role: "root"},
			want: map[string]string{
				"email":  "must be a valid email",
				"name":   "must be at most 5 characters",
				"rating": "must be <= 5",
				"tags":   "must contain at most 2 items",
				"role":   "must be one of user admin",
			},
		},
		{
			name: "missing required and low rating",
			in:   sample{Rating: 0},
			want: map[string]string{"email": "is required", "rating": "must be >= 1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Map(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("Map() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("Map()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}
