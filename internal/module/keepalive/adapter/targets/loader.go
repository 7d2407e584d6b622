package targets

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"

	"github.com/jinford/wiki-keepalive/internal/module/keepalive/domain"
)

// ErrUnknownTarget は指定されたWiki名が設定に存在しない場合のエラー
var ErrUnknownTarget = errors.New("unknown wiki target")

var pathPattern = regexp.MustCompile(`^/`)

// WikiEntry は設定ファイルの1エントリ
type WikiEntry struct {
	Desc      string   `yaml:"desc" json:"desc"`
	Path      string   `yaml:"path" json:"path"`
	HostCheck string   `yaml:"hostcheck" json:"hostcheck"`
	Pages     []string `yaml:"pages" json:"pages"`
}

// File は設定ファイル全体の構造
type File struct {
	Wikis []WikiEntry `yaml:"wikis" json:"wikis"`
}

// Validate はエントリの内容を検証します
func (e WikiEntry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Desc, validation.Required, validation.By(notBlank)),
		validation.Field(&e.HostCheck, validation.Required, is.Host),
		validation.Field(&e.Path, validation.Required, validation.Match(pathPattern).Error("must start with /")),
		validation.Field(&e.Pages, validation.Required, validation.Each(validation.Required, validation.By(notBlank))),
	)
}

// Validate はファイル全体を検証します。Wiki名は一意でなければならない
func (f File) Validate() error {
	if len(f.Wikis) == 0 {
		return errors.New("wikis: at least one wiki is required")
	}

	seen := make(map[string]int, len(f.Wikis))
	for i, entry := range f.Wikis {
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("wikis[%d]: %w", i, err)
		}
		if prev, ok := seen[entry.Desc]; ok {
			return fmt.Errorf("wikis[%d]: desc %q is already used by wikis[%d]", i, entry.Desc, prev)
		}
		seen[entry.Desc] = i
	}
	return nil
}

func notBlank(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_blank", "must not be blank")
	}
	return nil
}

// Load は設定ファイルを読み込み、検証してWiki一覧を返します
func Load(path string) ([]domain.WikiTarget, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wiki config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse はYAMLを解析して検証します
func Parse(data []byte) ([]domain.WikiTarget, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse wiki config: %w", err)
	}
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wiki config: %w", err)
	}

	targets := make([]domain.WikiTarget, 0, len(file.Wikis))
	for _, entry := range file.Wikis {
		targets = append(targets, domain.WikiTarget{
			Description: entry.Desc,
			Host:        entry.HostCheck,
			Path:        entry.Path,
			Pages:       append([]string(nil), entry.Pages...),
		})
	}
	return targets, nil
}

// Filter は指定したWiki名のみを設定順で返します。only が空の場合はすべてを返す
func Filter(targets []domain.WikiTarget, only []string) ([]domain.WikiTarget, error) {
	if len(only) == 0 {
		return targets, nil
	}

	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		for _, part := range strings.Split(name, ",") {
			if part = strings.TrimSpace(part); part != "" {
				wanted[part] = true
			}
		}
	}

	known := make(map[string]bool, len(targets))
	var selected []domain.WikiTarget
	for _, t := range targets {
		known[t.Description] = true
		if wanted[t.Description] {
			selected = append(selected, t)
		}
	}

	for name := range wanted {
		if !known[name] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
		}
	}
	return selected, nil
}

// Marshal はWiki一覧を設定ファイルのYAMLに変換します
func Marshal(targets []domain.WikiTarget) ([]byte, error) {
	file := File{Wikis: make([]WikiEntry, 0, len(targets))}
	for _, t := range targets {
		file.Wikis = append(file.Wikis, WikiEntry{
			Desc:      t.Description,
			Path:      t.Path,
			HostCheck: t.Host,
			Pages:     t.Pages,
		})
	}
	return yaml.Marshal(file)
}
