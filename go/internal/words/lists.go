package words

import (
	"bufio"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/mcdev12/wordduel/go/internal/feedback"
)

//go:embed lists/*.txt
var listFS embed.FS

type listKey struct {
	lang   string
	length int
}

var (
	listsOnce sync.Once
	lists     map[listKey][]string
	allowed   map[listKey]map[string]struct{}
	listsErr  error
)

func loadLists() {
	lists = make(map[listKey][]string)
	allowed = make(map[listKey]map[string]struct{})

	entries, err := fs.ReadDir(listFS, "lists")
	if err != nil {
		listsErr = err
		return
	}
	for _, e := range entries {
		lang, size, ok := strings.Cut(strings.TrimSuffix(e.Name(), ".txt"), "_")
		if !ok {
			continue
		}
		length, err := strconv.Atoi(size)
		if err != nil {
			continue
		}
		words, err := readList("lists/"+e.Name(), length)
		if err != nil {
			listsErr = fmt.Errorf("read %s: %w", e.Name(), err)
			return
		}
		key := listKey{lang: lang, length: length}
		lists[key] = words
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		allowed[key] = set
	}
}

func readList(name string, length int) ([]string, error) {
	f, err := listFS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		w, err := validate(line, Request{Length: length})
		if err != nil {
			continue
		}
		out = append(out, w)
	}
	return out, sc.Err()
}

// List returns the embedded words of a language and length.
func List(lang string, length int) ([]string, error) {
	listsOnce.Do(loadLists)
	if listsErr != nil {
		return nil, listsErr
	}
	words := lists[listKey{lang: langOrDefault(lang), length: length}]
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: no %d-letter list for %q", ErrNoWords, length, langOrDefault(lang))
	}
	return words, nil
}

// IsAllowed reports whether word is in the embedded list for its length.
func IsAllowed(lang, word string) bool {
	listsOnce.Do(loadLists)
	w := feedback.Normalize(word)
	_, ok := allowed[listKey{lang: langOrDefault(lang), length: feedback.Len(w)}][w]
	return ok
}

// Languages lists the language codes with at least one embedded list.
func Languages() []string {
	listsOnce.Do(loadLists)
	seen := make(map[string]struct{})
	for k := range lists {
		seen[k.lang] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for l := range seen {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
