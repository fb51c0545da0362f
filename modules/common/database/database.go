package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path"

	"github.com/supabase-community/supabase-go"

	"storyboard-server/modules/common/config"
	"storyboard-server/modules/common/model"
)

const assetsTable = "storyboard_assets"

type Client struct {
	supabase *supabase.Client
}

// NewClient - Database 클라이언트 생성
func NewClient(cfg *config.Config) (*Client, error) {
	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}

	return &Client{
		supabase: supabaseClient,
	}, nil
}

// CreateAssetRecord - storyboard_assets 테이블에 레코드 생성
func (c *Client) CreateAssetRecord(ctx context.Context, asset model.Asset) (int64, error) {
	log.Printf("💾 Creating asset record for: %s", asset.FilePath)

	insertData := map[string]interface{}{
		"board_id":   asset.BoardID,
		"scene_id":   asset.SceneID,
		"file_name":  path.Base(asset.FilePath),
		"file_path":  asset.FilePath,
		"file_size":  asset.FileSize,
		"file_type":  asset.FileType,
		"public_url": asset.PublicURL,
	}

	data, _, err := c.supabase.From(assetsTable).
		Insert(insertData, false, "", "", "").
		Execute()
	if err != nil {
		return 0, fmt.Errorf("failed to insert asset record: %w", err)
	}

	var assets []model.Asset
	if err := json.Unmarshal(data, &assets); err != nil {
		return 0, fmt.Errorf("failed to parse asset response: %w", err)
	}
	if len(assets) == 0 {
		return 0, fmt.Errorf("no asset record returned")
	}

	log.Printf("✅ Asset record created: ID=%d", assets[0].AssetID)
	return assets[0].AssetID, nil
}

// FetchBoardAssets - 보드에 연결된 영상 레코드 조회
func (c *Client) FetchBoardAssets(boardID string) ([]model.Asset, error) {
	log.Printf("🔍 Fetching assets for board: %s", boardID)

	data, _, err := c.supabase.From(assetsTable).
		Select("*", "exact", false).
		Eq("board_id", boardID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", assetsTable, err)
	}

	var assets []model.Asset
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("failed to parse assets response: %w", err)
	}
	return assets, nil
}
