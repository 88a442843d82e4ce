package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dkoval/facescout/internal/ai"
	"github.com/dkoval/facescout/internal/analysis"
	"github.com/dkoval/facescout/internal/frames"
	"github.com/dkoval/facescout/internal/mediaref"
)

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".wmv":  "video/x-ms-wmv",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

func main() {
	var (
		photoPath = flag.String("photo", "", "Path to the reference photo")
		videoPath = flag.String("video", "", "Path to the video clip")
		outDir    = flag.String("out", "./snapshots", "Directory for extracted frames")
	)
	flag.Parse()

	if *photoPath == "" || *videoPath == "" {
		log.Fatal("Please provide -photo and -video paths")
	}

	godotenv.Load()

	aiConfig := ai.NewConfig()
	aiConfig.APIKey = os.Getenv("MODEL_API_KEY")
	if baseURL := os.Getenv("MODEL_BASE_URL"); baseURL != "" {
		aiConfig.BaseURL = baseURL
	}
	if model := os.Getenv("MODEL_NAME"); model != "" {
		aiConfig.Model = model
	}

	client, err := ai.NewClient(aiConfig)
	if err != nil {
		log.Fatal("Failed to initialize model client:", err)
	}

	extractor, err := frames.NewExtractor(frames.Config{DrawBoxes: true}, nil)
	if err != nil {
		log.Fatal("Failed to initialize frame extractor:", err)
	}
	defer extractor.Cleanup()

	photoRef, err := fileRef(*photoPath)
	if err != nil {
		log.Fatal("Failed to read photo:", err)
	}
	videoRef, err := fileRef(*videoPath)
	if err != nil {
		log.Fatal("Failed to read video:", err)
	}

	service := analysis.NewService(client, extractor, nil, nil, nil, analysis.Config{}, nil)

	fmt.Printf("Analyzing %s against %s...\n", filepath.Base(*videoPath), filepath.Base(*photoPath))

	result := service.Analyze(context.Background(), analysis.Request{
		PhotoRef: photoRef,
		VideoRef: videoRef,
	})

	fmt.Printf("Duration: %.1fs\n", result.Duration)
	if result.Verdict.IsPresent {
		fmt.Println("Verdict: person is present")
	} else {
		fmt.Println("Verdict: person not found")
	}
	if result.Verdict.Confidence != nil {
		fmt.Printf("Confidence: %.2f\n", *result.Verdict.Confidence)
	}
	if result.Verdict.Reason != "" {
		fmt.Printf("Reason: %s\n", result.Verdict.Reason)
	}

	if len(result.Snapshots) == 0 {
		return
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatal("Failed to create output directory:", err)
	}

	for i, snapshot := range result.Snapshots {
		ref, err := mediaref.Parse(snapshot.ImageData)
		if err != nil {
			log.Printf("Skipping snapshot %d: %v", i, err)
			continue
		}

		ext := ".jpg"
		if ref.ContentType == "image/png" {
			ext = ".png"
		}
		name := filepath.Join(*outDir, fmt.Sprintf("frame_%02d_%.1fs%s", i, snapshot.Timestamp, ext))
		if err := os.WriteFile(name, ref.Data, 0644); err != nil {
			log.Printf("Failed to write %s: %v", name, err)
			continue
		}

		marker := "✓"
		if snapshot.Status == analysis.StatusFailed {
			marker = "✗"
		}
		fmt.Printf("%s %s (%.1fs, %s)\n", marker, name, snapshot.Timestamp, snapshot.Status)
	}
}

func fileRef(path string) (string, error) {
	contentType, ok := contentTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("unrecognized file extension %q", filepath.Ext(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return mediaref.Format(contentType, data), nil
}
