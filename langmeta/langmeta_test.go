package langmeta

import "testing"

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "ja-JP", want: "ja_jp"},
		{in: " ZH_cn ", want: "zh_cn"},
		{in: "ko_kr", want: "ko_kr"},
		{in: "", want: ""},
	}

	for _, tc := range cases {
		got := Canonicalize(tc.in)
		if got != tc.want {
			t.Fatalf("Canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		got := Resolve("ja_jp")
		if got.Name != "Japanese" || got.Native != "日本語" || got.Code != "ja_jp" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("normalized match", func(t *testing.T) {
		got := Resolve("pt-BR")
		if got.Name != "Brazilian Portuguese" || got.Code != "pt_br" {
			t.Fatalf("unexpected result: %#v", got)
		}
	})

	t.Run("base fallback", func(t *testing.T) {
		got := Resolve("ko")
		if got.Code != "ko_kr" {
			t.Fatalf("unexpected fallback result: %#v", got)
		}
	})

	t.Run("unknown passthrough", func(t *testing.T) {
		got := Resolve("zz_zz")
		if got.Name != "zz_zz" || len(got.Scripts) != 0 {
			t.Fatalf("unexpected unknown result: %#v", got)
		}
	})
}

func TestInScript(t *testing.T) {
	ja := Resolve("ja_jp")
	if !ja.InScript("ダイヤモンドの剣") {
		t.Fatal("katakana text should be detected as Japanese")
	}
	if ja.InScript("Diamond Sword") {
		t.Fatal("latin text should not be detected as Japanese")
	}
	if Resolve("de_de").InScript("Schwert") {
		t.Fatal("latin-script locales never report InScript")
	}
}
