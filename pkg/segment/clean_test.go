package segment

import "testing"

func TestCleanString(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"信号很强👍，速度快！", "信号很强，速度快！"},
		{"WiFi6 路由器 AX3000 很稳定", "路由器很稳定"},
		{"  网速\t快\n", "网速快"},
		{"😀😀🚀🇨🇳", ""},
		{"abc 123 !!!", ""},
		{"《说明书》【赠品】‘不错’", "《说明书》【赠品】‘不错’"},
		{"信号“很好”，推荐", "信号很好，推荐"},
		{`说"好"的'快'`, `说"好"的'快'`},
		{"价格~~便宜#@", "价格便宜"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanString(tt.in); got != tt.out {
			t.Errorf("CleanString(%q) = %q; want %q", tt.in, got, tt.out)
		}
	}
}

func TestCleanNonString(t *testing.T) {
	var nilStr *string
	s := "很好用"
	tests := []struct {
		name string
		in   any
		out  string
	}{
		{"nil", nil, ""},
		{"int", 5, ""},
		{"float", 4.5, ""},
		{"nil pointer", nilStr, ""},
		{"pointer", &s, "很好用"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.out {
				t.Fatalf("Clean(%v) = %q; want %q", tt.in, got, tt.out)
			}
		})
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	samples := []string{
		"买了两个，一个放客厅一个放卧室😊信号覆盖全屋，5G频段速度能到900M",
		"用了一周就断流，客服回复慢！！差评👎",
		"外观好看 ，，散热一般'' 价格实惠“推荐”",
		"此用户没有填写评价",
		"🤖🤖🤖 ok ok",
	}
	for _, s := range samples {
		once := CleanString(s)
		twice := CleanString(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", s, once, twice)
		}
	}
}
