package convert

import (
	"sort"
	"strings"
)

type family struct {
	category  Category
	inputs    map[string]struct{}
	outputs   map[string]struct{}
	converter Converter
}

// Registry は (変換元拡張子, 変換先拡張子) の組から担当コンバーターを
// 引くための不変の対応表です。起動時に明示的に構築して
// Executor へ注入します。
type Registry struct {
	families []family
}

// NewRegistry はレジストリを構築します。拡張子集合が重なる組み合わせは
// 書庫 → 文書 → 画像 → メディア の固定順で最初に一致した系統が担当します。
func NewRegistry(document *DocumentConverter, image *ImageConverter, media *MediaConverter, archive *ArchiveConverter) *Registry {
	mediaInputs := append(append([]string{}, videoInputExts...), audioInputExts...)
	mediaOutputs := append(append([]string{}, videoOutputExts...), audioOutputExts...)

	return &Registry{
		families: []family{
			{
				category:  CategoryArchive,
				inputs:    extSet(archiveInputExts),
				outputs:   extSet(archiveOutputExts),
				converter: archive,
			},
			{
				category:  CategoryDocument,
				inputs:    extSet(documentInputExts),
				outputs:   extSet(documentOutputExts),
				converter: document,
			},
			{
				category:  CategoryImage,
				inputs:    extSet(imageInputExts),
				outputs:   extSet(imageOutputExts),
				converter: image,
			},
			{
				category:  CategoryMedia,
				inputs:    extSet(mediaInputs),
				outputs:   extSet(mediaOutputs),
				converter: media,
			},
		},
	}
}

// Resolve は両方の拡張子を宣言している最初の系統を返します。
// どの系統にも該当しない場合は ok=false を返します。
func (r *Registry) Resolve(sourceExt, targetExt string) (Converter, Category, bool) {
	sourceExt = strings.ToLower(sourceExt)
	targetExt = strings.ToLower(targetExt)
	for _, f := range r.families {
		if _, in := f.inputs[sourceExt]; !in {
			continue
		}
		if _, out := f.outputs[targetExt]; !out {
			continue
		}
		return f.converter, f.category, true
	}
	return nil, CategoryUnknown, false
}

// CategoryFor はメトリクス用に変換元拡張子の属する系統を返します。
func (r *Registry) CategoryFor(sourceExt string) Category {
	sourceExt = strings.ToLower(sourceExt)
	for _, f := range r.families {
		if _, ok := f.inputs[sourceExt]; ok {
			return f.category
		}
	}
	return CategoryUnknown
}

// SupportedConversions は系統ごとの入出力拡張子の一覧を返します。
func (r *Registry) SupportedConversions() map[string]map[string][]string {
	supported := make(map[string]map[string][]string, len(r.families))
	for _, f := range r.families {
		supported[string(f.category)] = map[string][]string{
			"from": extList(f.inputs),
			"to":   extList(f.outputs),
		}
	}
	return supported
}

func extSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[e] = struct{}{}
	}
	return set
}

func extList(set map[string]struct{}) []string {
	list := make([]string, 0, len(set))
	for e := range set {
		list = append(list, e)
	}
	sort.Strings(list)
	return list
}
