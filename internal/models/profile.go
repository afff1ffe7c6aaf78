package models

// Profile describes where one application version keeps the controls the
// export workflow drives. Selectors are resource ids (full or short form)
// and visible labels.
type Profile struct {
	Name             string         `yaml:"name"`
	Package          string         `yaml:"package"`
	Activity         string         `yaml:"activity"`
	ConversationList ListSelectors  `yaml:"conversation_list"`
	Menu             MenuSelectors  `yaml:"menu"`
	MediaDialog      MediaSelectors `yaml:"media_dialog"`
	ShareSheet       ShareSelectors `yaml:"share_sheet"`
	Drive            DriveSelectors `yaml:"drive"`
	Export           ExportFiles    `yaml:"export"`
}

type ListSelectors struct {
	RowNameID string `yaml:"row_name_id"`
}

type MenuSelectors struct {
	OverflowID   string `yaml:"overflow_id"`
	OverflowDesc string `yaml:"overflow_desc"`
	MoreText     string `yaml:"more_text"`
	ExportText   string `yaml:"export_text"`
}

type MediaSelectors struct {
	IncludeText string `yaml:"include_text"`
	WithoutText string `yaml:"without_text"`
}

type ShareSelectors struct {
	LabelID  string              `yaml:"label_id"`
	Synonyms map[string][]string `yaml:"synonyms"`
}

type DriveSelectors struct {
	FolderLabelID string `yaml:"folder_label_id"`
	PickerItemID  string `yaml:"picker_item_id"`
	RootFolder    string `yaml:"root_folder"`
	SelectText    string `yaml:"select_text"`
	SaveID        string `yaml:"save_id"`
	SaveText      string `yaml:"save_text"`
}

type ExportFiles struct {
	FilePrefix string   `yaml:"file_prefix"`
	Locations  []string `yaml:"locations"`
}
