package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const cacheVersion = "2.0"

// CacheManager keeps the last fetched conversation list and conversation
// snapshots on disk so the console can browse offline
type CacheManager struct {
	cacheDir string
	now      func() time.Time
}

// CacheMetadata stores metadata about the cache
type CacheMetadata struct {
	APIBaseURL   string    `json:"api_base_url" yaml:"api_base_url"`
	CacheVersion string    `json:"cache_version" yaml:"cache_version"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// ConversationIndex is the YAML index of cached conversations
type ConversationIndex struct {
	Conversations []ConversationSummary `yaml:"conversations"`
	Total         int                   `yaml:"total"`
	Metadata      CacheMetadata         `yaml:"metadata"`
}

// NewCacheManager creates a new cache manager
func NewCacheManager(cacheDir string) *CacheManager {
	return &CacheManager{
		cacheDir: cacheDir,
		now:      time.Now,
	}
}

// EnsureCacheDir ensures the cache directory exists
func (cm *CacheManager) EnsureCacheDir() error {
	return os.MkdirAll(cm.cacheDir, 0755)
}

// GetCacheDir returns the cache directory path
func (cm *CacheManager) GetCacheDir() string {
	return cm.cacheDir
}

// GetIndexPath returns the path to the conversation index YAML file
func (cm *CacheManager) GetIndexPath() string {
	return filepath.Join(cm.cacheDir, "conversations.yaml")
}

// GetConversationPath returns the path to a conversation's snapshot file
func (cm *CacheManager) GetConversationPath(conversationID string) string {
	return filepath.Join(cm.cacheDir, fmt.Sprintf("conversation_%s.json", conversationID))
}

// IsCacheValid reports whether the index was written for baseURL within ttl.
// A ttl of zero means the index never expires.
func (cm *CacheManager) IsCacheValid(baseURL string, ttl time.Duration) (bool, error) {
	if _, err := os.Stat(cm.GetIndexPath()); os.IsNotExist(err) {
		return false, nil
	}

	index, err := cm.LoadIndex()
	if err != nil {
		return false, err
	}

	if index.Metadata.APIBaseURL != baseURL {
		return false, nil
	}
	if index.Metadata.CacheVersion != cacheVersion {
		return false, nil
	}
	if ttl > 0 && cm.now().Sub(index.Metadata.UpdatedAt) > ttl {
		return false, nil
	}

	return true, nil
}

// LoadIndex loads the conversation index
func (cm *CacheManager) LoadIndex() (*ConversationIndex, error) {
	data, err := os.ReadFile(cm.GetIndexPath())
	if err != nil {
		return nil, err
	}

	var index ConversationIndex
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal index: %w", err)
	}

	return &index, nil
}

// SaveIndex saves the conversation index
func (cm *CacheManager) SaveIndex(index *ConversationIndex) error {
	if err := cm.EnsureCacheDir(); err != nil {
		return err
	}

	data, err := yaml.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	return os.WriteFile(cm.GetIndexPath(), data, 0644)
}

// SaveList merges a freshly fetched list page into the index for baseURL.
// An index written for another backend is replaced.
func (cm *CacheManager) SaveList(list *ConversationList, baseURL string) error {
	now := cm.now()

	index, err := cm.LoadIndex()
	if err != nil || index.Metadata.APIBaseURL != baseURL || index.Metadata.CacheVersion != cacheVersion {
		index = &ConversationIndex{
			Metadata: CacheMetadata{
				APIBaseURL:   baseURL,
				CacheVersion: cacheVersion,
				CreatedAt:    now,
			},
		}
	}
	index.Metadata.UpdatedAt = now
	index.Total = list.Total

	for _, item := range list.Items {
		replaced := false
		for i := range index.Conversations {
			if index.Conversations[i].ID == item.ID {
				index.Conversations[i] = item
				replaced = true
				break
			}
		}
		if !replaced {
			index.Conversations = append(index.Conversations, item)
		}
	}

	return cm.SaveIndex(index)
}

// RemoveFromIndex drops a conversation from the index and deletes its snapshot
func (cm *CacheManager) RemoveFromIndex(conversationID string) error {
	_ = os.Remove(cm.GetConversationPath(conversationID))

	index, err := cm.LoadIndex()
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	kept := index.Conversations[:0]
	for _, c := range index.Conversations {
		if c.ID != conversationID {
			kept = append(kept, c)
		}
	}
	index.Conversations = kept
	if index.Total > 0 {
		index.Total--
	}
	return cm.SaveIndex(index)
}

// SaveConversation saves a conversation snapshot
func (cm *CacheManager) SaveConversation(detail *ConversationDetail) error {
	if err := cm.EnsureCacheDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	return os.WriteFile(cm.GetConversationPath(detail.ID), data, 0644)
}

// LoadConversation loads a conversation snapshot
func (cm *CacheManager) LoadConversation(conversationID string) (*ConversationDetail, error) {
	data, err := os.ReadFile(cm.GetConversationPath(conversationID))
	if err != nil {
		return nil, err
	}

	var detail ConversationDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}

	return &detail, nil
}

// ClearCache clears the cache
func (cm *CacheManager) ClearCache() error {
	index, err := cm.LoadIndex()
	if err == nil {
		for _, entry := range index.Conversations {
			_ = os.Remove(cm.GetConversationPath(entry.ID))
		}
	}

	if err := os.Remove(cm.GetIndexPath()); err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
