package services

import (
	"bytes"
	"testing"

	"github.com/petitmonde/univers-backend/internal/domain"
)

func TestMediaStore_SaveReadDelete(t *testing.T) {
	media := newTestMediaStore(t)

	url, err := media.Save([]byte("png-bytes"), "jungle/00_lion.png")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if url != "/storage/buckets/univers/jungle/00_lion.png" {
		t.Fatalf("unexpected public url %q", url)
	}
	if !media.Exists("jungle/00_lion.png") {
		t.Fatalf("saved file should exist")
	}
	data, ok := media.Read("jungle/00_lion.png")
	if !ok || !bytes.Equal(data, []byte("png-bytes")) {
		t.Fatalf("read back %q ok=%v", data, ok)
	}
	if !media.Delete("jungle/00_lion.png") {
		t.Fatalf("delete should succeed")
	}
	if media.Exists("jungle/00_lion.png") {
		t.Fatalf("deleted file should not exist")
	}
	if media.Delete("jungle/00_lion.png") {
		t.Fatalf("second delete should report false")
	}
}

func TestMediaStore_ReadMissingFile(t *testing.T) {
	media := newTestMediaStore(t)

	if _, ok := media.Read("jungle/absent.png"); ok {
		t.Fatalf("missing file should not read")
	}
	if media.Exists("jungle/absent.png") {
		t.Fatalf("missing file should not exist")
	}
}

func TestMediaStore_ListUniverseSortsAndSkipsHidden(t *testing.T) {
	media := newTestMediaStore(t)

	for _, name := range []string{"01_monkey.png", "00_lion.png", ".emptyFolderPlaceholder"} {
		if _, err := media.Save([]byte("x"), "jungle/"+name); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}
	if err := media.CreateUniverseDir("ocean"); err != nil {
		t.Fatalf("create dir: %v", err)
	}

	files, err := media.ListUniverse("jungle")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 || files[0] != "jungle/00_lion.png" || files[1] != "jungle/01_monkey.png" {
		t.Fatalf("unexpected listing %v", files)
	}

	files, err = media.ListUniverse("nowhere")
	if err != nil {
		t.Fatalf("list missing dir: %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("missing dir should list empty, got %v", files)
	}
}

func TestMediaStore_DeleteUniverseDir(t *testing.T) {
	media := newTestMediaStore(t)

	if _, err := media.Save([]byte("x"), "jungle/00_lion.png"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if !media.DeleteUniverseDir("jungle") {
		t.Fatalf("delete dir should succeed")
	}
	if media.Exists("jungle/00_lion.png") {
		t.Fatalf("dir contents should be gone")
	}
	if media.DeleteUniverseDir("jungle") {
		t.Fatalf("second delete should report false")
	}
}

func TestMediaStore_RenameAssetMediaMovesPair(t *testing.T) {
	media := newTestMediaStore(t)

	if _, err := media.Save([]byte("img"), "jungle/00_lion.png"); err != nil {
		t.Fatalf("save image: %v", err)
	}
	if _, err := media.Save([]byte("vid"), "jungle/"+domain.AssetVideoName("00_lion.png")); err != nil {
		t.Fatalf("save video: %v", err)
	}

	if err := media.RenameAssetMedia("jungle", "00_lion.png", "00_tiger.png"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if media.Exists("jungle/00_lion.png") || media.Exists("jungle/"+domain.AssetVideoName("00_lion.png")) {
		t.Fatalf("old names should be gone")
	}
	if !media.Exists("jungle/00_tiger.png") || !media.Exists("jungle/"+domain.AssetVideoName("00_tiger.png")) {
		t.Fatalf("new names should exist")
	}
}

func TestMediaStore_RenameAssetMediaWithoutVideo(t *testing.T) {
	media := newTestMediaStore(t)

	if _, err := media.Save([]byte("img"), "jungle/00_lion.png"); err != nil {
		t.Fatalf("save image: %v", err)
	}
	if err := media.RenameAssetMedia("jungle", "00_lion.png", "00_tiger.png"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if !media.Exists("jungle/00_tiger.png") {
		t.Fatalf("image should be renamed")
	}
	if media.Exists("jungle/" + domain.AssetVideoName("00_tiger.png")) {
		t.Fatalf("no video should appear")
	}
}

func TestMediaStore_RenameAssetMediaMissingImage(t *testing.T) {
	media := newTestMediaStore(t)

	if err := media.RenameAssetMedia("jungle", "00_lion.png", "00_tiger.png"); err == nil {
		t.Fatalf("rename of a missing image should fail")
	}
}

func TestMediaStore_URLHelpersEmptyWhenMissing(t *testing.T) {
	media := newTestMediaStore(t)

	if url := media.AssetImageURL("jungle", "00_lion.png"); url != "" {
		t.Fatalf("missing image should have no url, got %q", url)
	}
	if url := media.ThumbnailURL("jungle"); url != "" {
		t.Fatalf("missing thumbnail should have no url, got %q", url)
	}
	if url := media.MusicURL("jungle", "fr"); url != "" {
		t.Fatalf("missing music should have no url, got %q", url)
	}

	if _, err := media.Save([]byte("x"), "jungle/00_lion.png"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := media.Save([]byte("x"), "jungle/"+domain.ThumbnailFileName); err != nil {
		t.Fatalf("save thumbnail: %v", err)
	}
	if url := media.AssetImageURL("jungle", "00_lion.png"); url != "/storage/buckets/univers/jungle/00_lion.png" {
		t.Fatalf("unexpected image url %q", url)
	}
	if url := media.AssetVideoURL("jungle", "00_lion.png"); url != "" {
		t.Fatalf("video url should be empty without the file, got %q", url)
	}
	if url := media.ThumbnailURL("jungle"); url == "" {
		t.Fatalf("thumbnail url should resolve once saved")
	}
}

func TestMimeType(t *testing.T) {
	if got := MimeType("jungle/00_lion.png"); got != "image/png" {
		t.Fatalf("png mime = %q", got)
	}
	if got := MimeType("jungle/unknown.blob"); got != "application/octet-stream" {
		t.Fatalf("fallback mime = %q", got)
	}
}
