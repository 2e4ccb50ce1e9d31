package convert

import (
	"testing"

	"github.com/yourusername/file-converter/internal/storage"
)

func newTestRegistry() *Registry {
	runner := &Runner{}
	return NewRegistry(
		NewDocumentConverter(runner, "soffice", "/tmp/out"),
		NewImageConverter(runner, "convert"),
		NewMediaConverter(runner, "ffmpeg"),
		NewArchiveConverter(runner, "7z", "tar"),
	)
}

func TestRegistryResolve(t *testing.T) {
	registry := newTestRegistry()

	tests := []struct {
		sourceExt string
		targetExt string
		category  Category
		ok        bool
	}{
		{".zip", ".tar.gz", CategoryArchive, true},
		// storage.NormalizedExt が返す複合拡張子も解決できる
		{".tar.gz", ".zip", CategoryArchive, true},
		{".tar.bz2", ".7z", CategoryArchive, true},
		{".tar.xz", ".tar", CategoryArchive, true},
		{".docx", ".pdf", CategoryDocument, true},
		{".png", ".jpg", CategoryImage, true},
		{".mp4", ".mp3", CategoryMedia, true},
		{".mp3", ".wav", CategoryMedia, true},
		// 書庫系統は文書・画像より優先される
		{".gz", ".zip", CategoryArchive, true},
		// 拡張子の大文字小文字は無視される
		{".PNG", ".JPG", CategoryImage, true},
		{".xyz", ".abc", CategoryUnknown, false},
		// 両拡張子が同一系統に属さない組は解決されない
		{".png", ".mp3", CategoryUnknown, false},
	}

	for _, tt := range tests {
		converter, category, ok := registry.Resolve(tt.sourceExt, tt.targetExt)
		if ok != tt.ok {
			t.Fatalf("Resolve(%s, %s) ok = %v, want %v", tt.sourceExt, tt.targetExt, ok, tt.ok)
		}
		if category != tt.category {
			t.Fatalf("Resolve(%s, %s) category = %s, want %s", tt.sourceExt, tt.targetExt, category, tt.category)
		}
		if tt.ok && converter == nil {
			t.Fatalf("Resolve(%s, %s) returned nil converter", tt.sourceExt, tt.targetExt)
		}
	}
}

func TestRegistryDocumentBeatsImageForPDFTarget(t *testing.T) {
	registry := newTestRegistry()

	// .html → .pdf は文書系統、.png → .pdf は画像系統が担当する
	_, category, ok := registry.Resolve(".html", ".pdf")
	if !ok || category != CategoryDocument {
		t.Fatalf("Resolve(.html, .pdf) = %s ok=%v, want documents", category, ok)
	}
	_, category, ok = registry.Resolve(".png", ".pdf")
	if !ok || category != CategoryImage {
		t.Fatalf("Resolve(.png, .pdf) = %s ok=%v, want images", category, ok)
	}
}

func TestRegistryResolvesNormalizedUploadExtensions(t *testing.T) {
	registry := newTestRegistry()

	// アップロード名から取り出した拡張子がそのまま解決に使える
	for _, name := range []string{"backup.tar.gz", "backup.tar.bz2", "backup.tar.xz", "archive.zip"} {
		ext := storage.NormalizedExt(name)
		_, category, ok := registry.Resolve(ext, ".zip")
		if !ok || category != CategoryArchive {
			t.Fatalf("Resolve(%s, .zip) = %s ok=%v, want archives", ext, category, ok)
		}
	}
}

func TestRegistryCategoryFor(t *testing.T) {
	registry := newTestRegistry()

	tests := []struct {
		ext      string
		category Category
	}{
		{".7z", CategoryArchive},
		{".odt", CategoryDocument},
		{".webp", CategoryImage},
		{".flac", CategoryMedia},
		{".xyz", CategoryUnknown},
	}
	for _, tt := range tests {
		if got := registry.CategoryFor(tt.ext); got != tt.category {
			t.Fatalf("CategoryFor(%s) = %s, want %s", tt.ext, got, tt.category)
		}
	}
}

func TestRegistrySupportedConversions(t *testing.T) {
	registry := newTestRegistry()

	supported := registry.SupportedConversions()
	for _, category := range []string{"archives", "documents", "images", "media"} {
		entry, ok := supported[category]
		if !ok {
			t.Fatalf("missing category %s", category)
		}
		if len(entry["from"]) == 0 || len(entry["to"]) == 0 {
			t.Fatalf("category %s has empty extension lists", category)
		}
	}

	media := supported["media"]
	if !containsString(media["from"], ".mp4") || !containsString(media["from"], ".mp3") {
		t.Fatalf("media inputs should include video and audio: %v", media["from"])
	}
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
