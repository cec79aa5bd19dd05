// CLAUDE:SUMMARY Fixed selectors, URLs and page-script entry points of the AestheticsPro application.
// Package site lists the selectors, URLs and page functions of the one target
// application. They live in one place because the markup changes without
// notice and every component shares them.
package site

import "github.com/hazyhaar/aprexport/uicap"

const (
	LoginURL      = "https://www.aestheticspro.com/Login/"
	ClientListURL = "https://secure.aestheticspro.com/clients/client_list/index.cfm"

	// ClientListPath is the argument the application's own navigator expects.
	ClientListPath = "clients/client_list/index.cfm"

	// RecordsFolderLabel is the default label of the exportable folder.
	RecordsFolderLabel = "Treatment Records"
)

// Page-global script functions.
const (
	FnChangeClientTab = "changeClientTab"
	FnRunPrint        = "runPrint"
	FnPageNav         = "pagenav"
	FnScrollTo        = "window.scrollTo"

	// RecordsTab is the changeClientTab argument of the electronic records tab.
	RecordsTab = 2
)

// Login form.
var (
	Username = uicap.CSS("#username")
	Password = uicap.CSS("#password")
	SignIn   = uicap.CSS("#btnSignin")
)

// Transient indicators.
var (
	Spinner           = uicap.CSS("#spinnerapplayout")
	LoadingRow        = uicap.CSS("td.dataTables_empty").Containing("Loading...")
	Interstitial      = uicap.CSS("#clientnotepop")
	InterstitialClose = uicap.CSS("#cboxClose")
	Toasts            = uicap.CSS("div.toast-body, div.toast")
	CloseX            = uicap.CSS("a.close").WithText("×")
	BlockingModals    = uicap.CSS(".modal.show, #clientnotepop")
	ModalClose        = uicap.CSS(".close, .btn-close, [data-dismiss='modal'], [data-bs-dismiss='modal']")
)

// Client list.
var (
	ClientListTable = uicap.CSS("#tblClientLeadListBody")
	ClientRows      = uicap.CSS("#tblClientLeadListBody tr:not(.dataTables_empty) td.clientName a[onclick*='clientdetails']")
	NextPage        = uicap.CSS("#clientlistTableBody_next")
	DisabledClass   = "disabled"
)

// LetterFilter is the alphabet filter link for letter.
func LetterFilter(letter string) uicap.Locator {
	return uicap.CSS("div.sortingRow a").WithText(letter)
}

// PageNumber is the direct page-number control for page n.
func PageNumber(n string) uicap.Locator {
	return uicap.CSS("#clientlistTableBody_paginate a").WithText(n)
}

// Navigation back to the list.
var (
	ClientsMenu       = uicap.CSS("a.dc-mega").Containing("Clients")
	ClientListMenu    = uicap.CSS("a.menulink").Containing("Client List")
	SidebarClient     = uicap.CSS("a").WithText("Client")
	SidebarClientList = uicap.CSS("a").WithText("Client List")
	SidebarToggle     = uicap.CSS(".sidebar-collapse-toggle")
	ClientListScript  = uicap.CSS("a.menulink[onclick*='client_list']")
)

// Client profile.
var (
	ProfileInfo = uicap.CSS("#clientProfileInfoDiv")
	ProfileName = uicap.CSS("h5")
	ProfileID   = uicap.CSS("p").Containing("ID:")
)

// Record tree.
var (
	RecordGroups   = uicap.CSS("li.parentrec")
	GroupCaret     = uicap.CSS("span.caret.parentcaret")
	GroupTitle     = uicap.CSS("span.caret.parentcaret a")
	SubFolders     = uicap.CSS("ul.nested > li")
	SubFolderCaret = uicap.CSS("span.caret")
	SubFolderTitle = uicap.CSS("span.caret a")
	Documents      = uicap.CSS("ul.nested.sub-nested > li[id*='_doc'] > div.slide > a[onclick*='launchERForm']")
	DocumentName   = uicap.CSS(".treetextitem")
	ExpandedClass  = "caret-down"
)

// Document viewer.
var (
	ViewerIcons   = uicap.CSS("div.er_icons")
	EmailDownload = uicap.CSS("div.er_icons div[onclick*='emailDownloadERC']")
	Refresh       = uicap.CSS("div.er_icons div[onclick*='refreshFormERC']")
	PrintSlide    = uicap.CSS("#printslide")
	PrintKey      = uicap.CSS("#printslide #printKey")
)

// ViewerClose lists the close affordances of the viewer, most specific first.
var ViewerClose = []uicap.Locator{
	uicap.CSS("div.closeCustomSlide.nav-customclose"),
	uicap.CSS("div.closeCustomSlide img[src*='menu-close']"),
	uicap.CSS(".closeCustomSlide"),
}
