package extract

import "testing"

func TestSanitizeJSONText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"code fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"smart quotes", "{“a”: ‘1’}", `{"a": '1'}`},
		{"trailing comma", `{"a": [1, 2,],}`, `{"a": [1, 2]}`},
		{"control chars", "{\"a\":\x01 1}", `{"a": 1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeJSONText(tc.in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseJSONRobust(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"strict", `{"jobs": [{"title": "SWE"}]}`},
		{"fenced", "```json\n{\"jobs\": [{\"title\": \"SWE\"}]}\n```"},
		{"prose wrapped", `Here is the result: {"jobs": [{"title": "SWE"}]} hope it helps`},
		{"trailing comma", `{"jobs": [{"title": "SWE"},]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var page PageJobs
			if err := ParseJSONRobust(tc.in, &page); err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if len(page.Jobs) != 1 || page.Jobs[0].Title != "SWE" {
				t.Errorf("jobs = %+v", page.Jobs)
			}
		})
	}
}

func TestParseJSONRobustGivesUp(t *testing.T) {
	var page PageJobs
	if err := ParseJSONRobust("this is not json at all", &page); err == nil {
		t.Fatal("expected error for unparseable input")
	}
}

func TestFlexStringAcceptsList(t *testing.T) {
	var page PageJobs
	in := `{"jobs": [{"title": "SWE", "location": ["Paris", "Lyon"]}]}`
	if err := ParseJSONRobust(in, &page); err != nil {
		t.Fatal(err)
	}
	if got := page.Jobs[0].Location.String(); got != "Paris, Lyon" {
		t.Errorf("location = %q", got)
	}
}
