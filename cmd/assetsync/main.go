// Package main 是 Scratch 资源同步工具的入口点
// 从 Scratch 官方服务器下载编辑器素材库引用的所有资源文件
// （角色、背景、造型、声音），用于离线部署
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

// assetURL 官方资源下载地址，%s 为 md5ext（md5 哈希加扩展名）
const assetURL = "https://assets.scratch.mit.edu/internalapi/asset/%s/get/"

var (
	librariesDir string // 素材库 JSON 文件所在目录
	outputDir    string // 资源输出目录
	concurrency  int    // 并发下载数
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "assetsync",
		Short: "下载 Scratch 素材库资源到本地",
		Long: `扫描素材库的 sprites/backdrops/costumes/sounds JSON 文件，
收集所有资源的 md5ext，并从官方服务器下载到输出目录。
已存在的文件自动跳过，可以随时中断后重新运行。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	rootCmd.Flags().StringVar(&librariesDir, "libraries-dir", "scratch-gui/src/lib/libraries", "素材库 JSON 文件目录")
	rootCmd.Flags().StringVar(&outputDir, "output-dir", "frontend/public/scratch/assets", "资源输出目录")
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 10, "并发下载数")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	md5exts, err := collectMD5Exts(librariesDir)
	if err != nil {
		return err
	}
	log.Printf("collected %d unique assets", len(md5exts))

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	downloaded, skipped, failed := downloadAll(md5exts)
	log.Printf("done: %d downloaded, %d skipped, %d failed", downloaded, skipped, failed)

	if failed > 0 {
		return fmt.Errorf("%d assets failed to download", failed)
	}
	return nil
}

// libraryEntry 素材库条目的公共结构
// 角色条目嵌套 costumes/sounds，其余条目自身带 md5ext
type libraryEntry struct {
	MD5Ext   string         `json:"md5ext"`
	Costumes []libraryEntry `json:"costumes"`
	Sounds   []libraryEntry `json:"sounds"`
}

// collectMD5Exts 扫描素材库 JSON 文件，收集去重后的 md5ext 列表
// 缺失的文件跳过，不当作错误
func collectMD5Exts(dir string) ([]string, error) {
	seen := make(map[string]bool)

	for _, filename := range []string{"sprites.json", "backdrops.json", "costumes.json", "sounds.json"} {
		path := filepath.Join(dir, filename)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				log.Printf("skip missing library file %s", path)
				continue
			}
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var entries []libraryEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		for _, entry := range entries {
			if entry.MD5Ext != "" {
				seen[entry.MD5Ext] = true
			}
			for _, costume := range entry.Costumes {
				if costume.MD5Ext != "" {
					seen[costume.MD5Ext] = true
				}
			}
			for _, sound := range entry.Sounds {
				if sound.MD5Ext != "" {
					seen[sound.MD5Ext] = true
				}
			}
		}
	}

	md5exts := make([]string, 0, len(seen))
	for md5ext := range seen {
		md5exts = append(md5exts, md5ext)
	}
	sort.Strings(md5exts)
	return md5exts, nil
}

// downloadAll 用固定大小的 worker 池并发下载全部资源
func downloadAll(md5exts []string) (downloaded, skipped, failed int) {
	client := &http.Client{Timeout: 30 * time.Second}

	jobs := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for md5ext := range jobs {
				switch err := downloadOne(client, md5ext); {
				case err == errExists:
					mu.Lock()
					skipped++
					mu.Unlock()
				case err != nil:
					log.Printf("download %s failed: %v", md5ext, err)
					mu.Lock()
					failed++
					mu.Unlock()
				default:
					mu.Lock()
					downloaded++
					if downloaded%100 == 0 {
						log.Printf("progress: %d downloaded", downloaded)
					}
					mu.Unlock()
				}
			}
		}()
	}

	for _, md5ext := range md5exts {
		jobs <- md5ext
	}
	close(jobs)
	wg.Wait()

	return downloaded, skipped, failed
}

// errExists 目标文件已存在的标记
var errExists = fmt.Errorf("already exists")

// downloadOne 下载单个资源，写入临时文件后改名，避免留下半截文件
func downloadOne(client *http.Client, md5ext string) error {
	target := filepath.Join(outputDir, md5ext)
	if _, err := os.Stat(target); err == nil {
		return errExists
	}

	resp, err := client.Get(fmt.Sprintf(assetURL, md5ext))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	tmp := target + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, target)
}
