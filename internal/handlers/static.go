package handlers

import (
	"log"
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// SPAHandler はdirの静的ファイルを配信します
// 存在しないパスにはindex.htmlを返し、クライアント側のルーティングに任せます
func SPAHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if _, err := os.Stat(p); os.IsNotExist(err) {
			serveIndex(w, r, index)
			return
		}
		files.ServeHTTP(w, r)
	})
}

func serveIndex(w http.ResponseWriter, r *http.Request, index string) {
	f, err := os.Open(index)
	if err != nil {
		log.Printf("Failed to open index: path=%s, error=%v", index, err)
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, "index.html", info.ModTime(), f)
}
