package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jlmalone/WhatsLiberation/internal/models"
	"gopkg.in/yaml.v3"
)

const DefaultName = "whatsapp-android"

// Default returns the built-in profile for the current WhatsApp Android
// release exporting through Google Drive.
func Default() *models.Profile {
	return &models.Profile{
		Name:     DefaultName,
		Package:  "com.whatsapp",
		Activity: "com.whatsapp/.HomeActivity",
		ConversationList: models.ListSelectors{
			RowNameID: "com.whatsapp:id/conversations_row_contact_name",
		},
		Menu: models.MenuSelectors{
			OverflowDesc: "More options",
			MoreText:     "More",
			ExportText:   "Export chat",
		},
		MediaDialog: models.MediaSelectors{
			IncludeText: "Include media",
			WithoutText: "Without media",
		},
		ShareSheet: models.ShareSelectors{
			Synonyms: map[string][]string{
				"Drive": {"My Drive", "Google Drive", "Save to Drive"},
			},
		},
		Drive: models.DriveSelectors{
			FolderLabelID: "com.google.android.apps.docs:id/entry_folder_name",
			PickerItemID:  "com.google.android.apps.docs:id/entry_label",
			RootFolder:    "My Drive",
			SelectText:    "Select",
			SaveID:        "com.google.android.apps.docs:id/save_button",
			SaveText:      "Save",
		},
		Export: models.ExportFiles{
			FilePrefix: "WhatsApp Chat with ",
			Locations: []string{
				"/sdcard/Download",
				"/sdcard/Documents",
				"/sdcard/Android/media/com.whatsapp/WhatsApp/Media/WhatsApp Documents",
			},
		},
	}
}

// Parse reads a profile file. Keys missing from the file keep their
// built-in defaults.
func Parse(path string) (*models.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	p := Default()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile YAML: %w", err)
	}

	return p, nil
}

func LoadAll(dirs []string) (map[string]*models.Profile, error) {
	profiles := make(map[string]*models.Profile)

	for _, dir := range dirs {
		if err := loadFromDir(dir, profiles); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
	}

	return profiles, nil
}

func loadFromDir(dir string, profiles map[string]*models.Profile) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		p, err := Parse(path)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}

		// Files that do not rename the profile are keyed by filename
		profileName := p.Name
		if profileName == "" || profileName == DefaultName {
			profileName = strings.TrimSuffix(strings.TrimSuffix(name, ".yaml"), ".yml")
		}
		p.Name = profileName

		profiles[profileName] = p
	}

	return nil
}

// Resolve picks a profile by file path or by name from dirs. An empty ref
// selects the built-in default.
func Resolve(ref string, dirs []string) (*models.Profile, error) {
	if ref == "" || ref == DefaultName {
		return Default(), nil
	}

	if strings.HasSuffix(ref, ".yaml") || strings.HasSuffix(ref, ".yml") {
		p, err := Parse(ref)
		if err != nil {
			return nil, err
		}
		return p, Validate(p)
	}

	profiles, err := LoadAll(dirs)
	if err != nil {
		return nil, err
	}
	p, ok := profiles[ref]
	if !ok {
		return nil, fmt.Errorf("profile %q not found", ref)
	}
	return p, Validate(p)
}

func Validate(p *models.Profile) error {
	if p.Package == "" {
		return fmt.Errorf("profile must name the application package")
	}

	if p.ConversationList.RowNameID == "" {
		return fmt.Errorf("profile must define conversation_list.row_name_id")
	}

	if p.Menu.OverflowID == "" && p.Menu.OverflowDesc == "" {
		return fmt.Errorf("profile must define menu.overflow_id or menu.overflow_desc")
	}

	if p.Menu.ExportText == "" {
		return fmt.Errorf("profile must define menu.export_text")
	}

	if p.Drive.SaveID == "" && p.Drive.SaveText == "" {
		return fmt.Errorf("profile must define drive.save_id or drive.save_text")
	}

	if p.Export.FilePrefix == "" {
		return fmt.Errorf("profile must define export.file_prefix")
	}

	return nil
}
