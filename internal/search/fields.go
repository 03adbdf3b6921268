package search

// Index field names.
const (
	FieldDatabaseID = "database_id"
	FieldType       = "type"

	FieldTitleSr          = "title_sr"
	FieldTitleOther       = "title_other"
	FieldDescriptionSr    = "description_sr"
	FieldDescriptionOther = "description_other"
	FieldKeywordsSr       = "keywords_sr"
	FieldKeywordsOther    = "keywords_other"
	FieldFullTextSr       = "full_text_sr"
	FieldFullTextOther    = "full_text_other"

	FieldYear = "year"
	FieldDOI  = "doi"

	FieldAuthorNames      = "author_names"
	FieldAuthorIDs        = "author_ids"
	FieldEditorNames      = "editor_names"
	FieldEditorIDs        = "editor_ids"
	FieldAdvisorNames     = "advisor_names"
	FieldAdvisorIDs       = "advisor_ids"
	FieldReviewerNames    = "reviewer_names"
	FieldReviewerIDs      = "reviewer_ids"
	FieldBoardMemberNames = "board_member_names"
	FieldBoardMemberIDs   = "board_member_ids"

	FieldClaimedPersonIDs  = "claimed_person_ids"
	FieldResearchOutputIDs = "research_output_ids"
	FieldInstitutionIDs    = "institution_ids"

	FieldIsApproved = "is_approved"
	FieldOpenAccess = "open_access"

	// FieldSource holds the JSON encoded entry. Stored, not indexed.
	FieldSource = "source"
)

// TitleFields are the two title buckets.
var TitleFields = []string{FieldTitleSr, FieldTitleOther}

// KeywordFields are the two keyword buckets.
var KeywordFields = []string{FieldKeywordsSr, FieldKeywordsOther}

// DescriptionFields are the description and full-text buckets.
var DescriptionFields = []string{FieldDescriptionSr, FieldDescriptionOther, FieldFullTextSr, FieldFullTextOther}

// NameFields are the role name strings.
var NameFields = []string{FieldAuthorNames, FieldEditorNames, FieldAdvisorNames, FieldReviewerNames, FieldBoardMemberNames}
